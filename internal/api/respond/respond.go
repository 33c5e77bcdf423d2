// Package respond writes JSON bodies and error envelopes for API handlers.
package respond

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine-readable code and a message for people.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// encodeFailure is sent when a response value can not be marshalled.
var encodeFailure = []byte(`{"error":{"code":"INTERNAL","message":"Failed to encode response"}}`)

// WriteJSON sends an already encoded draw. X-Cache is HIT when it was served
// from the draw cache and MISS when it was just made.
func WriteJSON(w http.ResponseWriter, status int, data []byte, etag string, ttl time.Duration, cacheHit bool) {
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding")
	h.Set("X-Cache", cacheStatus(cacheHit))
	h.Set("Cache-Control", drawCacheControl(ttl))
	send(w, status, data)
}

// WriteNotModified answers a conditional GET whose ETag still matches.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// WriteError sends an error envelope without detail.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorDetail(w, status, code, message, "")
}

// WriteErrorDetail sends an error envelope. Errors are never cached.
func WriteErrorDetail(w http.ResponseWriter, status int, code, message, detail string) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSONObject(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Detail: detail}})
}

// WriteJSONObject marshals v and sends it with status. A value that can not
// be marshalled is answered with 500 INTERNAL instead.
func WriteJSONObject(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status, data = http.StatusInternalServerError, encodeFailure
	}
	send(w, status, data)
}

func send(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

// drawCacheControl lets a client keep a draw for the rest of its cache life;
// a stored draw never changes.
func drawCacheControl(ttl time.Duration) string {
	return "private, max-age=" + strconv.Itoa(int(ttl/time.Second)) + ", immutable"
}
