package declare

import (
	"bufio"
	"strings"
)

// PropertiesFile reads a Java properties file (gradle.properties, plugin
// descriptors) into Property declarations in file order. Entries with an
// empty value are skipped.
func PropertiesFile(file, text string) []Declaration {
	var out []Declaration
	scanner := bufio.NewScanner(strings.NewReader(text))
	var (
		pending strings.Builder
		line    int
		start   int
	)
	for scanner.Scan() {
		line++
		trimmed := strings.TrimLeft(scanner.Text(), " \t\f")
		if pending.Len() == 0 {
			if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '!' {
				continue
			}
			start = line
		}
		if strings.HasSuffix(trimmed, `\`) && !strings.HasSuffix(trimmed, `\\`) {
			pending.WriteString(strings.TrimSuffix(trimmed, `\`))
			continue
		}
		pending.WriteString(trimmed)
		logical := pending.String()
		pending.Reset()

		key, value := splitProperty(logical)
		if key == "" || value == "" {
			continue
		}
		out = append(out, Declaration{Kind: Property, Name: key, Value: value, File: file, Line: start, Raw: logical})
	}
	return out
}

// splitProperty splits at the first unescaped '=', ':' or whitespace.
func splitProperty(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '=', ':':
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		case ' ', '\t', '\f':
			rest := strings.TrimLeft(s[i:], " \t\f")
			if rest != "" && (rest[0] == '=' || rest[0] == ':') {
				rest = rest[1:]
			}
			return s[:i], strings.TrimSpace(rest)
		}
	}
	return s, ""
}
