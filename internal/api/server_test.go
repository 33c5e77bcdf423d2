package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/teamdraw/internal/api/handler"
	"github.com/albapepper/teamdraw/internal/api/respond"
	"github.com/albapepper/teamdraw/internal/cache"
	"github.com/albapepper/teamdraw/internal/config"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) *chi.Mux {
	t.Helper()
	cfg := &config.Config{
		CORSAllowOrigins: []string{"http://localhost:3000"},
		MaxPlayers:       50,
		CacheTTL:         time.Hour,
	}
	if mutate != nil {
		mutate(cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(nil, cache.New(ctx, true, cfg.CacheTTL), cfg, logger)
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

const fourPlayers = `"players": [
	{"name": "Carol", "rank": 3, "group": "c", "history": {"team_2023": "Red"}},
	{"name": "Alice", "rank": 1, "group": "a", "history": {"team_2023": "Red"}},
	{"name": "Dave",  "rank": 4, "group": "d"},
	{"name": "Bob",   "rank": 2, "group": "b", "history": {"team_2023": "Blue"}}
]`

func drawBody(maxCommon string) string {
	return `{"settings": {"team_size": 2, "upper_size_fix": true, "max_group_size": 2, "max_common_team": ` +
		maxCommon + `}, ` + fourPlayers + `}`
}

func TestCreateAndGetDraw(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodPost, "/api/v1/draws", drawBody("1"), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var created handler.DrawResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "/api/v1/draws/"+created.ID, rec.Header().Get("Location"))
	assert.Equal(t, 2, created.Bounds.TeamCount)
	require.Len(t, created.Teams, 2)
	assert.Equal(t, []string{"Alice", "Dave"}, created.Teams[0].Players)
	assert.Equal(t, []string{"Bob", "Carol"}, created.Teams[1].Players)
	require.Len(t, created.Players, 4)
	assert.Equal(t, "Alice", created.Players[0].Name)
	for _, p := range created.Players {
		assert.GreaterOrEqual(t, p.Draw, 0)
	}

	rec = do(r, http.MethodGet, "/api/v1/draws/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = do(r, http.MethodGet, "/api/v1/draws/"+created.ID, "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestCreateDraw_Errors(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"infeasible", drawBody("0"), http.StatusUnprocessableEntity, "DRAW_INFEASIBLE"},
		{"bad json", `{"settings":`, http.StatusBadRequest, "INVALID_BODY"},
		{"unknown field", `{"setting": {}}`, http.StatusBadRequest, "INVALID_BODY"},
		{"invalid settings", `{"settings": {"team_size": 0, "max_group_size": 1}, ` + fourPlayers + `}`,
			http.StatusBadRequest, "INVALID_SETTINGS"},
		{"missing max_common_team", `{"settings": {"team_size": 2, "upper_size_fix": true, "max_group_size": 2}, ` +
			fourPlayers + `}`, http.StatusBadRequest, "INVALID_SETTINGS"},
		{"missing upper_size_fix", `{"settings": {"team_size": 2, "max_group_size": 2, "max_common_team": 1}, ` +
			fourPlayers + `}`, http.StatusBadRequest, "INVALID_SETTINGS"},
		{"fractional team size", `{"settings": {"team_size": 2.5, "upper_size_fix": true, "max_group_size": 2, "max_common_team": 1}, ` +
			fourPlayers + `}`, http.StatusBadRequest, "INVALID_BODY"},
		{"missing rank", `{"settings": {"team_size": 1, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 1},
			"players": [{"name": "A", "rank": 1}, {"name": "B"}]}`,
			http.StatusBadRequest, "INVALID_ROSTER"},
		{"bad history column", `{"settings": {"team_size": 2, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 1},
			"players": [{"name": "A", "rank": 1, "history": {"season": "x"}}]}`,
			http.StatusBadRequest, "INVALID_ROSTER"},
		{"history shadows name", `{"settings": {"team_size": 2, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 1},
			"players": [{"name": "A", "rank": 1, "history": {"name": "x"}}]}`,
			http.StatusBadRequest, "INVALID_ROSTER"},
		{"no players", `{"settings": {"team_size": 2, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 1}, "players": []}`,
			http.StatusBadRequest, "INVALID_ROSTER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/api/v1/draws", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestCreateDraw_MissingSettingsNamed(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodPost, "/api/v1/draws",
		`{"settings": {"team_size": 2}, `+fourPlayers+`}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_SETTINGS", resp.Error.Code)
	assert.Equal(t, "missing upper_size_fix, max_group_size, max_common_team", resp.Error.Detail)
}

// groupTailBody posts free ungrouped players and three players of one group
// ranked last into two teams with max_group_size 1. No draw exists and the
// search has to try every placement of the free players to prove it.
func groupTailBody(free, teamSize int) string {
	players := make([]string, 0, free+3)
	for i := 1; i <= free; i++ {
		players = append(players, fmt.Sprintf(`{"name": "p%d", "rank": %d}`, i, i))
	}
	for i := 1; i <= 3; i++ {
		players = append(players, fmt.Sprintf(`{"name": "g%d", "rank": %d, "group": "friends"}`, i, free+i))
	}
	return fmt.Sprintf(`{"settings": {"team_size": %d, "upper_size_fix": true, "max_group_size": 1, "max_common_team": 1}, "players": [%s]}`,
		teamSize, strings.Join(players, ", "))
}

func TestCreateDraw_SearchLimit(t *testing.T) {
	t.Run("node limit", func(t *testing.T) {
		r := newTestRouter(t, func(c *config.Config) { c.DrawMaxNodes = 1000 })

		rec := do(r, http.MethodPost, "/api/v1/draws", groupTailBody(20, 11), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		assert.Equal(t, "DRAW_LIMIT_EXCEEDED", errorCode(t, rec))
	})

	t.Run("timeout", func(t *testing.T) {
		r := newTestRouter(t, func(c *config.Config) { c.DrawTimeout = time.Nanosecond })

		rec := do(r, http.MethodPost, "/api/v1/draws", groupTailBody(20, 11), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		assert.Equal(t, "DRAW_LIMIT_EXCEEDED", errorCode(t, rec))
	})

	t.Run("unbounded search stays infeasible", func(t *testing.T) {
		r := newTestRouter(t, nil)

		rec := do(r, http.MethodPost, "/api/v1/draws", groupTailBody(12, 7), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		assert.Equal(t, "DRAW_INFEASIBLE", errorCode(t, rec))
	})
}

func TestCreateDraw_TooManyPlayers(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) { c.MaxPlayers = 3 })

	rec := do(r, http.MethodPost, "/api/v1/draws", drawBody("1"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TOO_MANY_PLAYERS", errorCode(t, rec))
}

func TestGetDraw_Errors(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodGet, "/api/v1/draws/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/draws/6f1c1c52-8d4e-4c1b-9a51-2f0e7f3c9b10", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventRoutes_WithoutDatabase(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodPost, "/api/v1/events/1/draw", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DATABASE_DISABLED", errorCode(t, rec))

	rec = do(r, http.MethodGet, "/api/v1/events/1/draw", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(r, http.MethodGet, "/health/db", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"disabled"`)
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) {
		c.RateLimitEnabled = true
		c.RateLimitRequests = 2
		c.RateLimitWindow = time.Minute
	})

	rec := do(r, http.MethodPost, "/api/v1/draws", drawBody("1"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/draws", drawBody("1"), nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))

	// Reads are not limited.
	rec = do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDocs(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodGet, "/docs/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc["swagger"])
}
