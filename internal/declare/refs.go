package declare

import "regexp"

var propertyRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\$\{\s*(?:(?:project|rootProject)\.)?(?:(?:ext|extra|properties)\.)?([A-Za-z_][A-Za-z0-9_.]*?)\s*\}$`),
	regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)$`),
	regexp.MustCompile(`^\$\{\s*(?:project\.|rootProject\.)?(?:property|findProperty)\(\s*["']([^"']+)["']\s*\)\s*\}$`),
	regexp.MustCompile(`^\$\{\s*(?:project\.|rootProject\.)?(?:ext|extra|properties)\[\s*["']([^"']+)["']\s*\]\s*\}$`),
}

// PropertyRef returns the property name when s is exactly one template
// reference such as "${springBootVersion}", "$bootVersion",
// "${property("boot.version")}" or "${rootProject.ext.bootVersion}".
func PropertyRef(s string) (string, bool) {
	for _, re := range propertyRefPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}
