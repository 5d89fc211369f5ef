package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeError answers in the API's {ok, error} envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{Error: msg}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write JSON error", "error", err)
	}
}
