package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/teamdraw/internal/api/respond"
	"github.com/albapepper/teamdraw/internal/draw"
	"github.com/albapepper/teamdraw/internal/store"
)

// EventDrawResponse is the stored draw of an event.
type EventDrawResponse struct {
	EventID int64               `json:"event_id"`
	Teams   []draw.ManifestTeam `json:"teams"`
}

// DrawEvent draws a stored event and persists the assignment.
// @Summary Draw a stored event
// @Description Reads the event's settings and roster from Postgres, draws it and replaces any previous assignment.
// @Tags events
// @Produce json
// @Param eventID path int true "Event ID"
// @Success 200 {object} EventDrawResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /events/{eventID}/draw [post]
func (h *Handler) DrawEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.searchContext(r)
	defer cancel()

	d, err := store.Draw(ctx, h.pool, id, h.cfg.DrawLimits(), h.logger)
	switch {
	case errors.Is(err, store.ErrEventNotFound):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Event not found")
		return
	case errors.Is(err, draw.ErrInfeasible):
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "DRAW_INFEASIBLE",
			"No draw satisfies the event settings; relax the team size or limits and try again", err.Error())
		return
	case limitExceeded(err):
		h.logger.Warn("Event draw search stopped", "event", id, "error", err)
		writeLimitExceeded(w, err)
		return
	case err != nil:
		h.logger.Error("Event draw failed", "event", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "DRAW_FAILED", "Event draw failed")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, EventDrawResponse{EventID: id, Teams: d.Manifest()})
}

// GetEventDraw returns the stored draw of an event.
// @Summary Get an event's draw
// @Tags events
// @Produce json
// @Param eventID path int true "Event ID"
// @Success 200 {object} EventDrawResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /events/{eventID}/draw [get]
func (h *Handler) GetEventDraw(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	teams, err := store.Manifest(r.Context(), h.pool, id)
	if errors.Is(err, store.ErrEventNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Event has not been drawn")
		return
	}
	if err != nil {
		h.logger.Error("Load event draw failed", "event", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load event draw")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, EventDrawResponse{EventID: id, Teams: teams})
}

// eventID parses the event path parameter, writing the error response itself
// when the request cannot be served.
func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if h.pool == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "DATABASE_DISABLED", "Event draws need DATABASE_URL")
		return 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil || id < 1 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "Event ID must be a positive integer")
		return 0, false
	}
	return id, true
}
