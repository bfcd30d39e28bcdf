package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} placeholders in raw YAML bytes, the same
// convention the teacher's config loader expands before parsing.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} with os.Getenv(VAR), leaving the literal
// placeholder in place if the variable is unset rather than silently
// turning it into an empty string.
func expandEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(name)); ok {
			return []byte(val)
		}
		return match
	})
}
