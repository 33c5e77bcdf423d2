package draw

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Source loads the inputs of one draw.
type Source interface {
	LoadSettings(ctx context.Context) (Settings, error)
	LoadRoster(ctx context.Context) (*Roster, error)
}

// Sink persists a finished draw. It is only called for complete draws.
type Sink interface {
	SaveDraw(ctx context.Context, d *Draw) error
}

// Draw is a finished draw: the roster with every player's Draw attached.
type Draw struct {
	Settings Settings
	Bounds   Bounds
	Roster   *Roster
	Result   *Result
}

// ManifestTeam is one team of the manifest.
type ManifestTeam struct {
	Team    int      `json:"team"`
	Players []string `json:"players"`
}

// Manifest lists every team in index order with its player names in
// placement order.
func (d *Draw) Manifest() []ManifestTeam {
	out := make([]ManifestTeam, len(d.Result.Teams))
	for t, members := range d.Result.Teams {
		names := make([]string, len(members))
		for i, idx := range members {
			names[i] = d.Roster.Players[idx].Name
		}
		out[t] = ManifestTeam{Team: t, Players: names}
	}
	return out
}

// Make runs the search for an already loaded roster and attaches the
// resulting team index to every player. The roster is left untouched on
// failure.
func Make(roster *Roster, settings Settings) (*Draw, error) {
	return MakeContext(context.Background(), roster, settings, Limits{})
}

// MakeContext is Make with the search bounded by limits and ctx.
func MakeContext(ctx context.Context, roster *Roster, settings Settings, limits Limits) (*Draw, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if roster == nil || len(roster.Players) == 0 {
		return nil, fmt.Errorf("roster: no players")
	}

	bounds := BoundsFor(len(roster.Players), settings)
	result, err := AssignContext(ctx, roster.Players, bounds, settings.Rules(), limits)
	if err != nil {
		return nil, err
	}

	for t, members := range result.Teams {
		for _, idx := range members {
			roster.Players[idx].Draw = t
		}
	}
	return &Draw{Settings: settings, Bounds: bounds, Roster: roster, Result: result}, nil
}

// Run loads settings and roster from src, makes the draw and saves it to sink.
// Nothing reaches the sink unless every player was placed. The search is only
// stopped by cancelling ctx.
func Run(ctx context.Context, src Source, sink Sink, logger *slog.Logger) (*Draw, error) {
	return RunLimited(ctx, src, sink, Limits{}, logger)
}

// RunLimited is Run with the search bounded by limits.
func RunLimited(ctx context.Context, src Source, sink Sink, limits Limits, logger *slog.Logger) (*Draw, error) {
	settings, err := src.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	roster, err := src.LoadRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	bounds := BoundsFor(len(roster.Players), settings)
	logger.Info("Drawing teams",
		"players", len(roster.Players),
		"teams", bounds.TeamCount,
		"min_team_size", bounds.MinSize,
		"max_team_size", bounds.MaxSize,
		"history_columns", len(roster.HistoryColumns))

	start := time.Now()
	d, err := MakeContext(ctx, roster, settings, limits)
	if err != nil {
		return nil, err
	}
	logger.Info("Draw found",
		"nodes", d.Result.Stats.Nodes,
		"backtracks", d.Result.Stats.Backtracks,
		"duration", time.Since(start))

	if err := sink.SaveDraw(ctx, d); err != nil {
		return nil, fmt.Errorf("save draw: %w", err)
	}
	return d, nil
}
