package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/albapepper/teamdraw/internal/api/respond"
	"github.com/albapepper/teamdraw/internal/cache"
	"github.com/albapepper/teamdraw/internal/draw"
)

const maxBodyBytes = 1 << 20

// DrawRequest is the body of POST /api/v1/draws.
type DrawRequest struct {
	Settings SettingsInput `json:"settings"`
	Players  []PlayerInput `json:"players"`
}

// SettingsInput is draw.Settings as posted. Every key is required, so a
// missing key is told apart from a zero value.
type SettingsInput struct {
	TeamSize      *int  `json:"team_size"`
	UpperSizeFix  *bool `json:"upper_size_fix"`
	MaxGroupSize  *int  `json:"max_group_size"`
	MaxCommonTeam *int  `json:"max_common_team"`
}

// PlayerInput is one roster entry. Name and rank are required. History maps
// a history column name, which must contain "team", to the player's value
// for it.
type PlayerInput struct {
	Name    string            `json:"name"`
	Rank    *float64          `json:"rank"`
	Group   string            `json:"group"`
	History map[string]string `json:"history,omitempty"`
}

// DrawResponse is a finished draw.
type DrawResponse struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Settings  draw.Settings       `json:"settings"`
	Bounds    draw.Bounds         `json:"bounds"`
	Teams     []draw.ManifestTeam `json:"teams"`
	Players   []PlayerOutput      `json:"players"`
	Stats     draw.Stats          `json:"stats"`
}

// PlayerOutput is a player with its assigned team, in rank order.
type PlayerOutput struct {
	Name  string  `json:"name"`
	Rank  float64 `json:"rank"`
	Group string  `json:"group,omitempty"`
	Draw  int     `json:"draw"`
}

// CreateDraw runs a draw for the posted roster and caches the result.
// @Summary Run a draw
// @Description Assigns the posted players into teams. Returns 422 when no assignment satisfies the settings or the search gives up at the server's limits.
// @Tags draws
// @Accept json
// @Produce json
// @Param body body DrawRequest true "Settings and roster"
// @Success 201 {object} DrawResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Router /draws [post]
func (h *Handler) CreateDraw(w http.ResponseWriter, r *http.Request) {
	var req DrawRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be a draw request", err.Error())
		return
	}
	if len(req.Players) > h.cfg.MaxPlayers {
		respond.WriteError(w, http.StatusBadRequest, "TOO_MANY_PLAYERS",
			fmt.Sprintf("At most %d players can be drawn per request", h.cfg.MaxPlayers))
		return
	}
	settings, err := req.Settings.settings()
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_SETTINGS", "Draw settings are invalid", err.Error())
		return
	}

	roster, err := req.roster()
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_ROSTER", "Roster is invalid", err.Error())
		return
	}

	ctx, cancel := h.searchContext(r)
	defer cancel()

	start := time.Now()
	d, err := draw.MakeContext(ctx, roster, settings, h.cfg.DrawLimits())
	switch {
	case errors.Is(err, draw.ErrInfeasible):
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "DRAW_INFEASIBLE",
			"No draw satisfies these settings; relax the team size or limits and try again", err.Error())
		return
	case limitExceeded(err):
		h.logger.Warn("Draw search stopped", "players", len(req.Players), "error", err, "duration", time.Since(start))
		writeLimitExceeded(w, err)
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_DRAW", "Draw could not be made", err.Error())
		return
	}

	resp := newDrawResponse(d)
	data, err := json.Marshal(resp)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to encode draw")
		return
	}
	etag := h.cache.Set(drawKey(resp.ID), data)

	h.logger.Info("Draw created",
		"id", resp.ID,
		"players", len(resp.Players),
		"teams", len(resp.Teams),
		"nodes", resp.Stats.Nodes,
		"duration", time.Since(start))

	w.Header().Set("Location", "/api/v1/draws/"+resp.ID)
	respond.WriteJSON(w, http.StatusCreated, data, etag, h.cache.TTL(), false)
}

// GetDraw returns a cached draw by ID.
// @Summary Get a draw
// @Tags draws
// @Produce json
// @Param drawID path string true "Draw ID"
// @Success 200 {object} DrawResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /draws/{drawID} [get]
func (h *Handler) GetDraw(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "drawID"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "Draw ID must be a UUID")
		return
	}

	data, etag, ok := h.cache.Get(drawKey(id.String()))
	if !ok {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Draw not found or expired")
		return
	}
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, http.StatusOK, data, etag, h.cache.TTL(), true)
}

func drawKey(id string) string {
	return "draw:" + id
}

// searchContext bounds a draw run for a request by the configured timeout.
func (h *Handler) searchContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.cfg.DrawTimeout > 0 {
		return context.WithTimeout(r.Context(), h.cfg.DrawTimeout)
	}
	return context.WithCancel(r.Context())
}

// limitExceeded reports whether a search gave up at the node limit or the
// request timeout.
func limitExceeded(err error) bool {
	return errors.Is(err, draw.ErrSearchLimit) || errors.Is(err, context.DeadlineExceeded)
}

func writeLimitExceeded(w http.ResponseWriter, err error) {
	respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "DRAW_LIMIT_EXCEEDED",
		"The draw search gave up before finding a draw; relax the limits or run it offline", err.Error())
}

// settings checks that every key was posted and validates the values.
func (in SettingsInput) settings() (draw.Settings, error) {
	var missing []string
	if in.TeamSize == nil {
		missing = append(missing, "team_size")
	}
	if in.UpperSizeFix == nil {
		missing = append(missing, "upper_size_fix")
	}
	if in.MaxGroupSize == nil {
		missing = append(missing, "max_group_size")
	}
	if in.MaxCommonTeam == nil {
		missing = append(missing, "max_common_team")
	}
	if len(missing) > 0 {
		return draw.Settings{}, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}

	s := draw.Settings{
		TeamSize:      *in.TeamSize,
		UpperSizeFix:  *in.UpperSizeFix,
		MaxGroupSize:  *in.MaxGroupSize,
		MaxCommonTeam: *in.MaxCommonTeam,
	}
	if err := s.Validate(); err != nil {
		return draw.Settings{}, err
	}
	return s, nil
}

// roster turns the request players into a roster with columns rank, name,
// group and the sorted union of history column names.
func (req *DrawRequest) roster() (*draw.Roster, error) {
	seen := make(map[string]bool)
	var history []string
	for i, p := range req.Players {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("player %d: name is required", i+1)
		}
		if p.Rank == nil {
			return nil, fmt.Errorf("player %d: rank is required", i+1)
		}
		for col := range p.History {
			if !seen[col] {
				seen[col] = true
				history = append(history, col)
			}
		}
	}
	sort.Strings(history)
	if err := draw.CheckHistoryColumns(history); err != nil {
		return nil, err
	}

	columns := append([]string{draw.ColumnRank, draw.ColumnName, draw.ColumnGroup}, history...)
	rows := make([][]string, len(req.Players))
	for i, p := range req.Players {
		row := []string{strconv.FormatFloat(*p.Rank, 'f', -1, 64), p.Name, p.Group}
		for _, col := range history {
			row = append(row, p.History[col])
		}
		rows[i] = row
	}
	return draw.NewRoster(columns, rows)
}

func newDrawResponse(d *draw.Draw) DrawResponse {
	players := make([]PlayerOutput, len(d.Roster.Players))
	for i, p := range d.Roster.Players {
		players[i] = PlayerOutput{Name: p.Name, Rank: p.Rank, Group: p.Group, Draw: p.Draw}
	}
	return DrawResponse{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Settings:  d.Settings,
		Bounds:    d.Bounds,
		Teams:     d.Manifest(),
		Players:   players,
		Stats:     d.Result.Stats,
	}
}
