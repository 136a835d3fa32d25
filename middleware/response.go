package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jefoffice/walletgate"
)

// MessageBody is the JSON error envelope.
type MessageBody struct {
	Message string `json:"message"`
}

// WriteJSON writes v as an uncacheable JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"message": message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, MessageBody{Message: message})
}

// WriteDecision answers a request the gate did not pass: a JSON error for
// API paths and 429s, a 307 redirect for pages. A decision without a status
// is answered 401.
func WriteDecision(w http.ResponseWriter, r *http.Request, d walletgate.Decision) {
	if d.Status == 0 {
		WriteError(w, http.StatusUnauthorized, walletgate.MessageUnauthorized)
		return
	}

	switch {
	case d.Outcome == walletgate.OutcomeRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
		WriteError(w, d.Status, d.Message)
	case d.Location != "":
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, d.Location, d.Status)
	default:
		WriteError(w, d.Status, d.Message)
	}
}
