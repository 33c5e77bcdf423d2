package draw

// Rules are the hard limits checked for every placement.
type Rules struct {
	MaxGroupSize  int // members sharing a group tag, candidate included
	MaxCommonTeam int // overlap with any single member must stay below this
}

// Allows reports whether candidate may join a team already holding members.
//
// A single member whose history overlaps too much rejects the placement; the
// overlaps are not summed.
func (r Rules) Allows(candidate Player, members []Player) bool {
	groupSize := 1
	maxOverlap := 0
	for _, m := range members {
		if n := Overlap(candidate, m); n > maxOverlap {
			maxOverlap = n
		}
		if candidate.Group != "" && m.Group == candidate.Group {
			groupSize++
		}
	}
	return groupSize <= r.MaxGroupSize && maxOverlap < r.MaxCommonTeam
}

// Overlap counts the history columns where a and b hold the same non-empty value.
func Overlap(a, b Player) int {
	n := 0
	for i, v := range a.History {
		if v != "" && i < len(b.History) && b.History[i] == v {
			n++
		}
	}
	return n
}
