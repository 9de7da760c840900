package version

import (
	"regexp"
	"strconv"
	"strings"
)

var versionRegex = regexp.MustCompile(`([0-9]+)\.([0-9]+)(?:\.([0-9]+))?`)

// Extract pulls the first dotted version out of probe output, for example
// "git version 2.47.1.windows.2" yields "2.47.1".
func Extract(output string) string {
	line := firstLine(strings.TrimSpace(output))
	return versionRegex.FindString(line)
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

// ParseGitTag converts a Git for Windows release tag into hudo's version form.
// "v2.47.1.windows.2" becomes "2.47.1.2" and "v2.47.1.windows.1" becomes "2.47.1".
func ParseGitTag(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "v")
	base, patch, ok := strings.Cut(tag, ".windows.")
	if !ok {
		return tag
	}
	if patch == "1" || patch == "" {
		return base
	}
	return base + "." + patch
}

// GitTag is the inverse of ParseGitTag.
func GitTag(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) >= 4 {
		return "v" + strings.Join(parts[:3], ".") + ".windows." + parts[3]
	}
	return "v" + version + ".windows.1"
}

// Compare returns -1, 0 or 1 comparing the numeric components of a and b.
// Missing components compare as zero.
func Compare(a, b string) int {
	aParts := numericParts(a)
	bParts := numericParts(b)
	for len(aParts) < len(bParts) {
		aParts = append(aParts, 0)
	}
	for len(bParts) < len(aParts) {
		bParts = append(bParts, 0)
	}
	for i := range aParts {
		if aParts[i] > bParts[i] {
			return 1
		}
		if aParts[i] < bParts[i] {
			return -1
		}
	}
	return 0
}

// MeetsMinimum reports whether version is at least minimum. An empty minimum
// always passes.
func MeetsMinimum(version, minimum string) bool {
	if minimum == "" {
		return true
	}
	if version == "" {
		return false
	}
	return Compare(version, minimum) >= 0
}

func numericParts(version string) []int {
	var parts []int
	current := strings.Builder{}
	for _, r := range version {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			val, _ := strconv.Atoi(current.String())
			parts = append(parts, val)
			current.Reset()
		}
	}
	if current.Len() > 0 {
		val, _ := strconv.Atoi(current.String())
		parts = append(parts, val)
	}
	return parts
}
