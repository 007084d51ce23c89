package countrymatch

import "strings"

// Matcher resolves whether two free-text country labels denote the same
// country. Matching is symmetric: Matches(a, b) == Matches(b, a).
type Matcher struct {
	groups map[string]int
}

// Alias groups. Every supported country gets a group; most are singletons.
// Names are stored normalized (lowercase, trimmed).
var aliasGroups = [][]string{
	{"united states", "united states of america", "usa"},
	{"united kingdom", "uk", "britain", "great britain", "england"},
	{"japan"},
	{"kenya"},
	{"india"},
	{"brazil"},
	{"peru"},
	{"mexico"},
	{"canada"},
	{"australia"},
	{"germany"},
	{"france"},
	{"spain"},
	{"italy"},
	{"portugal"},
	{"greece"},
	{"thailand"},
	{"vietnam"},
	{"cambodia"},
	{"indonesia"},
	{"philippines"},
	{"nepal"},
	{"sri lanka"},
	{"south africa"},
	{"tanzania"},
	{"uganda"},
	{"ghana"},
	{"morocco"},
	{"egypt"},
	{"costa rica"},
	{"guatemala"},
	{"ecuador"},
	{"colombia"},
	{"argentina"},
	{"chile"},
}

func New() *Matcher {
	groups := make(map[string]int)
	for id, group := range aliasGroups {
		for _, name := range group {
			groups[name] = id
		}
	}
	return &Matcher{groups: groups}
}

const minContainmentLen = 5

// Matches reports whether a and b name the same country. Empty-after-trim
// inputs never match, not even each other.
func (m *Matcher) Matches(a, b string) bool {
	a = normalize(a)
	b = normalize(b)
	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}

	if ga, ok := m.groups[a]; ok {
		if gb, ok := m.groups[b]; ok && ga == gb {
			return true
		}
	}

	// Substring containment catches suffix/prefix variants the alias table
	// misses ("united states" inside "united states of america"). Known to
	// false-positive on unrelated names sharing a long substring.
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= minContainmentLen && strings.Contains(longer, shorter) {
		return true
	}

	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
