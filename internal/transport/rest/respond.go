package rest

import (
	"encoding/json"
	"net/http"
)

// response envelope shared by every endpoint: {success, ...} on the happy
// path, {success:false, message} otherwise
func respondJSON(w http.ResponseWriter, code int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondSuccess(w http.ResponseWriter, code int, fields map[string]any) {
	payload := map[string]any{"success": true}
	for k, v := range fields {
		payload[k] = v
	}
	respondJSON(w, code, payload)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]any{"success": false, "message": message})
}
