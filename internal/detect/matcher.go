package detect

import "strings"

// TokenOverlapMatcher implements domain.EventMatcher by normalized token
// overlap: two or more shared tokens, or one normalized name contained in
// the other. Heuristic; false positives are possible on similarly worded
// events.
type TokenOverlapMatcher struct{}

// SameEvent reports whether two event names plausibly describe the same
// underlying outcome.
func (TokenOverlapMatcher) SameEvent(a, b string) bool {
	ta, tb := normalizeEvent(a), normalizeEvent(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}

	set := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range tb {
		if _, ok := set[t]; ok {
			shared++
			if shared >= 2 {
				return true
			}
		}
	}

	ja, jb := strings.Join(ta, " "), strings.Join(tb, " ")
	return strings.Contains(ja, jb) || strings.Contains(jb, ja)
}

// normalizeEvent lowercases an event name, strips punctuation, and drops
// short filler words so names from different platforms become comparable.
func normalizeEvent(name string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
