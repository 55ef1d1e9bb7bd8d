package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client disconnects surface here; nothing left to do.
		return
	}
}

// writeError writes a JSON error envelope with a stable error code and a
// human-readable message.
func writeError(w http.ResponseWriter, code int, errCode string, err error) {
	writeJSON(w, code, map[string]string{"error": errCode, "message": err.Error()})
}
