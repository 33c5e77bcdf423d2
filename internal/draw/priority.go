package draw

import "sort"

// noPlayer is the recency tag of a team nobody has joined yet.
const noPlayer = -1

// TeamOrder returns team indexes in the order they should be tried for the
// next player: smaller teams first, then teams whose most recently added
// player has the larger index, then lower team index.
//
// recent holds the Index of the last player added to each team, not the best
// ranked member.
func TeamOrder(sizes, recent []int) []int {
	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if sizes[i] != sizes[j] {
			return sizes[i] < sizes[j]
		}
		if recent[i] != recent[j] {
			return recent[i] > recent[j]
		}
		return i < j
	})
	return order
}
