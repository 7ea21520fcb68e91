// Package env reads process environment variables with fallbacks.
package env

import "os"

// Get returns the named variable, or fallback when it is unset or empty.
// An empty value counts as unset so a blank export cannot blank out a
// default.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
