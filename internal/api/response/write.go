package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response. Encoding errors after the header is sent cannot be
// reported to the client and are dropped.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
