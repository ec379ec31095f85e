package jira

// Project is the tracker-side project an import targets.
type Project struct {
	ID      int
	Key     string
	Name    string
	Counter int
}

// MinVersion is the lowest tracker version the import pipeline supports.
// Older schemas are missing the tables the bulk writer targets.
const MinVersion = "6.0.0"

// VersionAtLeast compares two dotted version strings numerically, segment
// by segment. Missing segments count as zero.
func VersionAtLeast(version, minimum string) bool {
	va := splitVersion(version)
	vb := splitVersion(minimum)
	for i := 0; i < len(va) || i < len(vb); i++ {
		a, b := 0, 0
		if i < len(va) {
			a = va[i]
		}
		if i < len(vb) {
			b = vb[i]
		}
		if a != b {
			return a > b
		}
	}
	return true
}

func splitVersion(v string) []int {
	var out []int
	segment := 0
	seen := false
	for _, r := range v {
		if r >= '0' && r <= '9' {
			segment = segment*10 + int(r-'0')
			seen = true
			continue
		}
		if r == '.' {
			out = append(out, segment)
			segment = 0
			seen = false
			continue
		}
		// Trailing qualifiers such as "-rc1" end the numeric part.
		break
	}
	if seen {
		out = append(out, segment)
	}
	return out
}
