package skills

import (
	"regexp"
	"strconv"
	"strings"
)

var validVersionRe = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)

// CompareVersions compares two skill versions and returns 1 when a > b, -1
// when a < b and 0 otherwise. Only the first three dot-separated components
// are compared, missing components count as zero, and anything after the
// leading digits of a component is ignored, so "1.0.0-beta" equals "1.0.0".
// An empty version on either side compares equal.
func CompareVersions(a, b string) int {
	if a == "" || b == "" {
		return 0
	}

	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")

	for i := 0; i < 3; i++ {
		na := component(pa, i)
		nb := component(pb, i)
		if na > nb {
			return 1
		}
		if na < nb {
			return -1
		}
	}
	return 0
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	s := parts[i]
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// IsValidVersion reports whether v is a MAJOR.MINOR.PATCH version with optional
// pre-release and build suffixes.
func IsValidVersion(v string) bool {
	if v == "" {
		return false
	}
	return validVersionRe.MatchString(v)
}
