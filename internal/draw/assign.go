package draw

import (
	"context"
	"errors"
	"fmt"
)

// ErrInfeasible is returned when no assignment satisfies the bounds and rules.
// Running the same draw again cannot change the outcome; the settings must be
// relaxed.
var ErrInfeasible = errors.New("players can not be drawn into teams, change the configuration and try again")

// ErrSearchLimit is returned when a bounded search visits more nodes than its
// limit allows before finding a draw or proving there is none.
var ErrSearchLimit = errors.New("draw search stopped at its node limit")

// ctxCheckMask sets how often a bounded search polls its context.
const ctxCheckMask = 1<<10 - 1

// Limits bound a search. The zero value is unbounded.
type Limits struct {
	MaxNodes int // 0 means no limit
}

// Stats describes the work done by one search.
type Stats struct {
	Nodes      int `json:"nodes"`
	Backtracks int `json:"backtracks"`
}

// Result is a complete assignment.
type Result struct {
	// Teams holds player indexes per team in placement order.
	Teams [][]int `json:"teams"`
	Stats Stats   `json:"stats"`
}

// Assign places players, already sorted by rank, into bounds.TeamCount teams.
// It returns the first assignment found under the deterministic search order,
// or ErrInfeasible.
func Assign(players []Player, bounds Bounds, rules Rules) (*Result, error) {
	return AssignContext(context.Background(), players, bounds, rules, Limits{})
}

// AssignContext is Assign with a node limit and cancellation. Neither changes
// the order in which placements are tried, so a bounded search that finishes
// returns the same draw as Assign. It fails with a wrapped ErrSearchLimit or
// the context's error when stopped early.
func AssignContext(ctx context.Context, players []Player, bounds Bounds, rules Rules, limits Limits) (*Result, error) {
	if bounds.TeamCount < 1 {
		return nil, fmt.Errorf("%d players make no team of at least %d: %w",
			len(players), bounds.MinSize, ErrInfeasible)
	}

	s := &search{
		ctx:     ctx,
		limits:  limits,
		players: players,
		bounds:  bounds,
		rules:   rules,
		members: make([][]Player, bounds.TeamCount),
		sizes:   make([]int, bounds.TeamCount),
		recent:  make([]int, bounds.TeamCount),
	}
	for t := range s.recent {
		s.recent[t] = noPlayer
	}

	if !s.place(0) {
		if s.err != nil {
			return nil, fmt.Errorf("after %d nodes: %w", s.stats.Nodes, s.err)
		}
		return nil, ErrInfeasible
	}

	teams := make([][]int, bounds.TeamCount)
	for t, members := range s.members {
		teams[t] = make([]int, len(members))
		for i, m := range members {
			teams[t][i] = m.Index
		}
	}
	return &Result{Teams: teams, Stats: s.stats}, nil
}

// search holds the mutable team state. Each placement is undone exactly on
// backtrack, so sibling branches always start from the same snapshot.
type search struct {
	ctx     context.Context
	limits  Limits
	err     error // set when the search was stopped early
	players []Player
	bounds  Bounds
	rules   Rules

	members [][]Player
	sizes   []int
	recent  []int

	stats Stats
}

func (s *search) place(next int) bool {
	if next == len(s.players) {
		for _, size := range s.sizes {
			if !s.bounds.fits(size) {
				return false
			}
		}
		return true
	}
	s.stats.Nodes++
	if s.limits.MaxNodes > 0 && s.stats.Nodes > s.limits.MaxNodes {
		s.err = ErrSearchLimit
		return false
	}
	if s.stats.Nodes&ctxCheckMask == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
	}

	p := s.players[next]
	for _, t := range TeamOrder(s.sizes, s.recent) {
		if !s.rules.Allows(p, s.members[t]) {
			continue
		}

		prev := s.recent[t]
		s.members[t] = append(s.members[t], p)
		s.sizes[t]++
		s.recent[t] = p.Index

		if s.place(next + 1) {
			return true
		}
		if s.err != nil {
			return false
		}

		s.members[t] = s.members[t][:len(s.members[t])-1]
		s.sizes[t]--
		s.recent[t] = prev
		s.stats.Backtracks++
	}
	return false
}
