// Package util holds small helpers with no home elsewhere.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads the environment variable key as a boolean toggle.
// It understands true/1/yes/on and false/0/no/off in any case; anything
// else, or an unset variable, yields defaultValue. Unrecognized values
// are logged so a typo in a deployment manifest does not fail silently.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("unrecognized boolean environment value", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}
