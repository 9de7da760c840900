package profile

import "strings"

// secretMarkers are substrings that mark a setting as authentication or
// session material. Such settings never enter or leave a profile.
var secretMarkers = []string{"token", "password", "passwd", "secret", "auth", "session", "credential", "cookie", "private_key"}

// IsSecretKey reports whether a setting name looks like it carries secrets.
func IsSecretKey(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range secretMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Scrub returns a copy of settings without secret keys or empty values.
func Scrub(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		if IsSecretKey(k) || strings.TrimSpace(v) == "" {
			continue
		}
		out[k] = v
	}
	return out
}
