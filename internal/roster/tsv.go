// Package roster reads player rosters from tab-separated files and writes
// finished draws back as a TSV roster plus a plain-text team manifest.
package roster

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/albapepper/teamdraw/internal/draw"
)

// Read parses a TSV roster. The first record is the header.
func Read(r io.Reader) (*draw.Roster, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("roster: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster: %w", err)
		}
		rows = append(rows, rec)
	}
	return draw.NewRoster(header, rows)
}

// WriteDraw writes every player, in rank order, with all original columns
// plus the draw column.
func WriteDraw(w io.Writer, d *draw.Draw) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(d.Roster.OutputColumns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range d.Roster.Players {
		if p.Draw == draw.Unassigned {
			return fmt.Errorf("player %q has no team", p.Name)
		}
		if err := cw.Write(d.Roster.OutputRecord(p)); err != nil {
			return fmt.Errorf("write player %q: %w", p.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteManifest writes each team index on its own line, followed by its
// players' names in placement order and a blank line.
func WriteManifest(w io.Writer, d *draw.Draw) error {
	bw := bufio.NewWriter(w)
	for _, team := range d.Manifest() {
		fmt.Fprintf(bw, "%d\n", team.Team)
		for _, name := range team.Players {
			fmt.Fprintf(bw, "%s\n", name)
		}
		fmt.Fprint(bw, "\n")
	}
	return bw.Flush()
}
