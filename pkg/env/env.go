package env

import "os"

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Port returns the platform-assigned PORT when set, otherwise fallback.
func Port(fallback string) string {
	return Get("PORT", fallback)
}
