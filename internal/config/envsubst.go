package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// substituteEnvVars expands environment references in content. References
// that cannot be resolved are left in place and reported in missing; a
// ${VAR:?message} reference reports "VAR: message".
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]
		value, ok := os.LookupEnv(name)

		switch op {
		case ":-":
			if value == "" {
				return arg
			}
			return value
		case ":?":
			if value == "" {
				missing = append(missing, name+": "+arg)
				return match
			}
			return value
		default:
			if !ok {
				missing = append(missing, name)
				return match
			}
			return value
		}
	})
	return out, missing
}
