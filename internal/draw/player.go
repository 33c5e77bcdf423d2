// Package draw assigns a ranked roster of players into teams of near-equal
// size while respecting group and team-history constraints.
//
// Players are processed in ascending rank order by a depth-first search that
// tries teams in priority order and prunes placements that break a rule.
// The first complete assignment found is the draw.
package draw

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Unassigned is the Draw value of a player not yet placed in a team.
const Unassigned = -1

// Column names the roster must carry.
const (
	ColumnRank  = "rank"
	ColumnName  = "name"
	ColumnGroup = "group"
	ColumnDraw  = "draw"

	// HistoryToken marks a column as a prior-team history column.
	HistoryToken = "team"
)

// Player is one roster row.
type Player struct {
	Row     int      // position in the source roster
	Index   int      // position after sorting by rank; the identity used by the search
	Rank    float64  // lower is better
	Name    string   // display only
	Group   string   // "" means no group
	History []string // one value per history column, "" when empty
	Fields  []string // raw values aligned to Roster.Columns
	Draw    int      // team index or Unassigned
}

// Roster is the full player list, sorted ascending by rank.
type Roster struct {
	Columns        []string
	HistoryColumns []int
	Players        []Player
}

// CheckHistoryColumns validates history column names supplied apart from a
// roster header. Every name must contain HistoryToken, which also keeps it
// clear of the rank, name, group and draw columns, and appear once.
func CheckHistoryColumns(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !strings.Contains(name, HistoryToken) {
			return fmt.Errorf("history column %q must contain %q", name, HistoryToken)
		}
		if seen[name] {
			return fmt.Errorf("history column %q repeated", name)
		}
		seen[name] = true
	}
	return nil
}

// NewRoster builds a roster from a header and its rows. Rows are sorted by
// rank with a stable sort so equal ranks keep their file order.
func NewRoster(columns []string, rows [][]string) (*Roster, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("roster: duplicate column %q", c)
		}
		idx[c] = i
	}
	for _, required := range []string{ColumnRank, ColumnName, ColumnGroup} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("roster: missing column %q", required)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("roster: no players")
	}

	var history []int
	for i, c := range columns {
		if strings.Contains(c, HistoryToken) {
			history = append(history, i)
		}
	}

	players := make([]Player, 0, len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("roster: row %d has %d fields, want %d", r+1, len(row), len(columns))
		}
		rankStr := strings.TrimSpace(row[idx[ColumnRank]])
		rank, err := strconv.ParseFloat(rankStr, 64)
		if err != nil {
			return nil, fmt.Errorf("roster: row %d: parse rank %q: %w", r+1, rankStr, err)
		}
		p := Player{
			Row:     r,
			Rank:    rank,
			Name:    row[idx[ColumnName]],
			Group:   strings.TrimSpace(row[idx[ColumnGroup]]),
			History: make([]string, len(history)),
			Fields:  append([]string(nil), row...),
			Draw:    Unassigned,
		}
		for h, col := range history {
			p.History[h] = strings.TrimSpace(row[col])
		}
		players = append(players, p)
	}

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Rank < players[j].Rank
	})
	for i := range players {
		players[i].Index = i
	}

	return &Roster{
		Columns:        append([]string(nil), columns...),
		HistoryColumns: history,
		Players:        players,
	}, nil
}

// HistoryNames returns the names of the history columns.
func (r *Roster) HistoryNames() []string {
	names := make([]string, len(r.HistoryColumns))
	for i, col := range r.HistoryColumns {
		names[i] = r.Columns[col]
	}
	return names
}

// OutputColumns returns the roster columns followed by the draw column.
// An existing draw column keeps its position and is overwritten.
func (r *Roster) OutputColumns() []string {
	for _, c := range r.Columns {
		if c == ColumnDraw {
			return append([]string(nil), r.Columns...)
		}
	}
	return append(append([]string(nil), r.Columns...), ColumnDraw)
}

// OutputRecord returns a player's fields with the draw value attached,
// aligned to OutputColumns.
func (r *Roster) OutputRecord(p Player) []string {
	draw := strconv.Itoa(p.Draw)
	for i, c := range r.Columns {
		if c == ColumnDraw {
			rec := append([]string(nil), p.Fields...)
			rec[i] = draw
			return rec
		}
	}
	return append(append([]string(nil), p.Fields...), draw)
}
