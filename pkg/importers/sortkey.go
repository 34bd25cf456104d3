package importers

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	firstIntRe = regexp.MustCompile(`\d+`)
	// <anything>_<magnitude>V.<ext>
	voltSuffixRe = regexp.MustCompile(`_([-+]?\d+(?:\.\d+)?)V\.[A-Za-z]+$`)
)

// firstInt returns the first run of digits in s.
func firstInt(s string) (int, bool) {
	m := firstIntRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// dottedFieldInt returns the first integer of the third dot-separated field
// of a member's base name, e.g. "run.tlp.pulse_12.csv" -> 12.
func dottedFieldInt(name string) (int, bool) {
	parts := strings.Split(path.Base(name), ".")
	if len(parts) < 3 {
		return 0, false
	}
	return firstInt(parts[2])
}

// voltSuffix returns the supply voltage encoded as "_<v>V.<ext>" at the end
// of a member's name.
func voltSuffix(name string) (float64, bool) {
	m := voltSuffixRe.FindStringSubmatch(path.Base(name))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// keyed is a member name with its numeric sort key.
type keyed struct {
	name string
	key  float64
}

// sortKeyed orders members numerically so that 9 < 10 < 90. Ties keep the
// name order so the result does not depend on archive order.
func sortKeyed(members []keyed) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].key != members[j].key {
			return members[i].key < members[j].key
		}
		return members[i].name < members[j].name
	})
}

func keyedNames(members []keyed) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.name
	}
	return out
}
