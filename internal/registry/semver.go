package registry

import (
	"strconv"
	"strings"
)

// semver is a minimal semantic-version comparator: major.minor.patch with
// an optional -prerelease suffix. It is deliberately narrower than full
// SemVer 2.0 (no build metadata, plain lexical prerelease ordering): the
// registry only needs a total, deterministic order for desc sorting, not
// SemVer's full precedence rules.
type semver struct {
	major, minor, patch int
	prerelease          string
	valid               bool
}

func parseSemver(v string) semver {
	core := v
	pre := ""
	if i := strings.IndexByte(v, '-'); i >= 0 {
		core = v[:i]
		pre = v[i+1:]
	}
	parts := strings.Split(core, ".")
	nums := make([]int, 3)
	for i := 0; i < 3 && i < len(parts); i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return semver{valid: false}
		}
		nums[i] = n
	}
	return semver{major: nums[0], minor: nums[1], patch: nums[2], prerelease: pre, valid: true}
}

// isPrerelease reports whether v carries a prerelease suffix.
func isPrerelease(v string) bool {
	return strings.Contains(v, "-")
}

// compareSemver returns >0 if a > b, <0 if a < b, 0 if equal (by the rules
// above). Non-numeric or malformed versions compare as lexicographically
// lower than any valid one, so malformed data never silently wins a sort.
func compareSemver(a, b string) int {
	sa, sb := parseSemver(a), parseSemver(b)
	if sa.valid != sb.valid {
		if sa.valid {
			return 1
		}
		return -1
	}
	if !sa.valid {
		return strings.Compare(a, b)
	}
	if d := sa.major - sb.major; d != 0 {
		return d
	}
	if d := sa.minor - sb.minor; d != 0 {
		return d
	}
	if d := sa.patch - sb.patch; d != 0 {
		return d
	}
	// A release (no prerelease) outranks any prerelease of the same core version.
	switch {
	case sa.prerelease == "" && sb.prerelease == "":
		return 0
	case sa.prerelease == "":
		return 1
	case sb.prerelease == "":
		return -1
	default:
		return strings.Compare(sa.prerelease, sb.prerelease)
	}
}
