package config

import (
	"os"
	"regexp"
)

// envRef matches ${VAR}. A bare $ is kept, since API keys may contain one.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv substitutes ${VAR} references, e.g. api_key: ${GEMINI_API_KEY}.
// Unset variables expand to "".
func ExpandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// ExpandEnvMap expands the values of an MCP server's env block
func ExpandEnvMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	expanded := make(map[string]string, len(m))
	for k, v := range m {
		expanded[k] = ExpandEnv(v)
	}
	return expanded
}
