package declare

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/dejo1307/gradlefacts/internal/script"
)

func interpret(t *testing.T, path, text string, opts Options) ([]Declaration, error) {
	t.Helper()
	src := script.NewSourceFile(path, text, opts.Dialect)
	root, err := script.Extract(src)
	require.NoError(t, err)
	opts.File = path
	return Interpret(root, opts)
}

func TestInterpret_PluginsBlock(t *testing.T) {
	decls, err := interpret(t, "build.gradle.kts", `plugins {
    java
    id("org.springframework.boot") version "3.2.0"
    id("io.spring.dependency-management") version "1.1.4" apply false
    kotlin("jvm") version "1.9.22"
    alias(libs.plugins.spring.boot)
}
`, Options{})
	require.NoError(t, err)
	require.Len(t, decls, 5)

	assert.Equal(t, Plugin, decls[0].Kind)
	assert.Equal(t, "java", decls[0].PluginID)
	assert.True(t, decls[0].Applied)

	assert.Equal(t, "org.springframework.boot", decls[1].PluginID)
	assert.Equal(t, VersionRef{Kind: LiteralVersion, Value: "3.2.0"}, decls[1].Version)
	assert.True(t, decls[1].Applied)
	assert.Equal(t, 3, decls[1].Line)

	assert.Equal(t, "io.spring.dependency-management", decls[2].PluginID)
	assert.False(t, decls[2].Applied)

	assert.Equal(t, "org.jetbrains.kotlin.jvm", decls[3].PluginID)

	assert.Equal(t, CatalogAlias, decls[4].Kind)
	assert.Equal(t, "libs", decls[4].Catalog)
	assert.Equal(t, "plugins.spring.boot", decls[4].Alias)
	assert.True(t, decls[4].PluginAlias)
}

func TestInterpret_GroovyLegacyBuildscript(t *testing.T) {
	decls, err := interpret(t, "build.gradle", `buildscript {
    ext {
        springBootVersion = '2.7.18'
    }
    dependencies {
        classpath "org.springframework.boot:spring-boot-gradle-plugin:${springBootVersion}"
    }
}

apply plugin: 'org.springframework.boot'
sourceCompatibility = '11'
`, Options{})
	require.NoError(t, err)
	require.Len(t, decls, 4)

	assert.Equal(t, Property, decls[0].Kind)
	assert.Equal(t, "springBootVersion", decls[0].Name)
	assert.Equal(t, "2.7.18", decls[0].Value)

	assert.Equal(t, Dependency, decls[1].Kind)
	assert.Equal(t, "classpath", decls[1].Configuration)
	assert.Equal(t, "org.springframework.boot:spring-boot-gradle-plugin", decls[1].Coordinate())
	assert.Equal(t, VersionRef{Kind: PropertyVersion, Value: "springBootVersion"}, decls[1].Version)

	assert.Equal(t, Plugin, decls[2].Kind)
	assert.Equal(t, "org.springframework.boot", decls[2].PluginID)
	assert.True(t, decls[2].Applied)

	assert.Equal(t, Toolchain, decls[3].Kind)
	assert.Equal(t, "11", decls[3].LanguageVersion)
}

func TestInterpret_Dependencies(t *testing.T) {
	decls, err := interpret(t, "build.gradle.kts", `dependencies {
    implementation("org.springframework.boot:spring-boot-starter-web")
    implementation(platform("org.springframework.boot:spring-boot-dependencies:3.1.5"))
    implementation(libs.spring.boot.starter.data.jpa)
    implementation(project(":core"))
    testImplementation("org.springframework.boot:spring-boot-starter-test:$bootVersion") {
        exclude(group = "org.junit.vintage")
    }
}
`, Options{})
	require.NoError(t, err)
	require.Len(t, decls, 4)

	assert.Equal(t, "implementation", decls[0].Configuration)
	assert.Equal(t, NoVersion, decls[0].Version.Kind)

	assert.True(t, decls[1].Platform)
	assert.Equal(t, "org.springframework.boot:spring-boot-dependencies", decls[1].Coordinate())
	assert.Equal(t, "3.1.5", decls[1].Version.Value)

	assert.Equal(t, CatalogAlias, decls[2].Kind)
	assert.Equal(t, "spring.boot.starter.data.jpa", decls[2].Alias)
	assert.False(t, decls[2].PluginAlias)

	assert.Equal(t, "testImplementation", decls[3].Configuration)
	assert.Equal(t, VersionRef{Kind: PropertyVersion, Value: "bootVersion"}, decls[3].Version)
}

func TestInterpret_GroovyMapDependency(t *testing.T) {
	decls, err := interpret(t, "build.gradle", `dependencies {
    implementation group: 'org.springframework.boot', name: 'spring-boot-starter', version: '3.0.0'
    compileOnly 'org.projectlombok:lombok', 'org.mapstruct:mapstruct:1.5.5.Final'
}
`, Options{})
	require.NoError(t, err)
	require.Len(t, decls, 3)
	assert.Equal(t, "org.springframework.boot:spring-boot-starter", decls[0].Coordinate())
	assert.Equal(t, "3.0.0", decls[0].Version.Value)
	assert.Equal(t, "org.projectlombok:lombok", decls[1].Coordinate())
	assert.Equal(t, "1.5.5.Final", decls[2].Version.Value)
}

func TestInterpret_Regions(t *testing.T) {
	decls, err := interpret(t, "build.gradle.kts", `allprojects {
    group = "com.example"
    java.toolchain.languageVersion.set(JavaLanguageVersion.of(17))
}

subprojects {
    apply(plugin = "org.springframework.boot")
}

configure(subprojects.filter { it.name.startsWith("svc") }) {
    apply(plugin = "io.spring.dependency-management")
}

project(":api") {
    dependencies {
        implementation("org.springframework.boot:spring-boot-starter-web")
    }
}
`, Options{})
	require.NoError(t, err)
	require.Len(t, decls, 4)
	assert.Equal(t, Toolchain, decls[0].Kind)
	assert.Equal(t, "17", decls[0].LanguageVersion)
	assert.Equal(t, AllProjects, decls[0].Region.Kind)
	assert.Equal(t, SubProjects, decls[1].Region.Kind)
	assert.Equal(t, SubProjects, decls[2].Region.Kind)
	assert.Equal(t, Region{Kind: Project, Target: ":api"}, decls[3].Region)
}

func TestInterpret_Malformed(t *testing.T) {
	decls, err := interpret(t, "build.gradle.kts", `plugins {
    id("")
    id("org.springframework.boot")
}
dependencies {
    implementation(":spring-boot-starter")
}
`, Options{})
	require.Error(t, err)
	require.Len(t, decls, 1, "interpretation continues after a malformed statement")
	assert.Equal(t, "org.springframework.boot", decls[0].PluginID)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	var md *MalformedDeclaration
	require.True(t, errors.As(errs[0], &md))
	assert.Equal(t, 2, md.Line)
	assert.Equal(t, "empty plugin id", md.Reason)
}

func TestInterpret_ProgrammaticDialect(t *testing.T) {
	decls, err := interpret(t, "buildSrc/src/main/kotlin/SpringBootPlugin.kt", `class SpringBootPlugin : Plugin<Project> {
    override fun apply(project: Project) {
        project.plugins.apply("org.springframework.boot")
        project.pluginManager.apply(JavaPlugin::class.java)
    }
}
`, Options{Dialect: script.Programmatic})
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, Programmatic, decls[0].Kind)
	assert.Equal(t, "org.springframework.boot", decls[0].PluginID)
	assert.Equal(t, "JavaPlugin", decls[1].Class)
}

func TestInterpret_SettingsPluginManagement(t *testing.T) {
	decls, err := interpret(t, "settings.gradle.kts", `pluginManagement {
    plugins {
        id("org.springframework.boot") version "3.3.0"
    }
}
rootProject.name = "demo"
include(":api", ":web")
`, Options{Settings: true})
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.False(t, decls[0].Applied)
	assert.Equal(t, "3.3.0", decls[0].Version.Value)
}

func TestInterpret_GradlePluginRegistration(t *testing.T) {
	decls, err := interpret(t, "build-logic/build.gradle.kts", `gradlePlugin {
    plugins {
        create("springConventions") {
            id = "com.example.spring-conventions"
            implementationClass = "com.example.SpringConventionsPlugin"
        }
    }
}
`, Options{})
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, Registration, decls[0].Kind)
	assert.Equal(t, "com.example.spring-conventions", decls[0].PluginID)
	assert.Equal(t, "SpringConventionsPlugin", decls[0].Class)
}

func TestInterpret_PropertiesAndCatalogVersion(t *testing.T) {
	decls, err := interpret(t, "build.gradle.kts", `val bootVersion by extra("3.2.4")
extra["cloudVersion"] = "2023.0.1"
plugins {
    id("org.springframework.boot") version libs.versions.spring.boot.get()
}
dependencyManagement {
    imports {
        mavenBom("org.springframework.cloud:spring-cloud-dependencies:${property("cloudVersion")}")
    }
}
`, Options{})
	require.NoError(t, err)
	require.Len(t, decls, 4)
	assert.Equal(t, "bootVersion", decls[0].Name)
	assert.Equal(t, "3.2.4", decls[0].Value)
	assert.Equal(t, "cloudVersion", decls[1].Name)
	assert.Equal(t, VersionRef{Kind: CatalogVersion, Value: "versions.spring.boot"}, decls[2].Version)
	assert.Equal(t, "mavenBom", decls[3].Configuration)
	assert.True(t, decls[3].Platform)
	assert.Equal(t, VersionRef{Kind: PropertyVersion, Value: "cloudVersion"}, decls[3].Version)
}

func TestPropertyRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"${springBootVersion}", "springBootVersion", true},
		{"$bootVersion", "bootVersion", true},
		{"${rootProject.ext.bootVersion}", "bootVersion", true},
		{`${property("spring.boot.version")}`, "spring.boot.version", true},
		{"${a}-${b}", "", false},
		{"3.2.0", "", false},
	}
	for _, tt := range tests {
		got, ok := PropertyRef(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseCoordinate(t *testing.T) {
	d, ok, reason := ParseCoordinate("org.springframework.boot:spring-boot-starter-web:3.2.0@jar", false)
	require.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, "spring-boot-starter-web", d.Artifact)
	assert.Equal(t, "3.2.0", d.Version.Value)

	_, ok, _ = ParseCoordinate("src/main/resources", false)
	assert.False(t, ok)

	_, ok, reason = ParseCoordinate("group::1.0", false)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestPropertiesFile(t *testing.T) {
	decls := PropertiesFile("gradle.properties", `# versions
springBootVersion=3.2.4
kotlin.version : 1.9.22
org.gradle.jvmargs -Xmx2g \
    -Dfile.encoding=UTF-8
! ignored
empty=
`)
	require.Len(t, decls, 3)
	assert.Equal(t, "springBootVersion", decls[0].Name)
	assert.Equal(t, "3.2.4", decls[0].Value)
	assert.Equal(t, 2, decls[0].Line)
	assert.Equal(t, "kotlin.version", decls[1].Name)
	assert.Equal(t, "1.9.22", decls[1].Value)
	assert.Equal(t, "org.gradle.jvmargs", decls[2].Name)
	assert.Equal(t, "-Xmx2g -Dfile.encoding=UTF-8", decls[2].Value)
	assert.Equal(t, 4, decls[2].Line)
}
