package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/adishahh/indian-market-ml-platform/pkg/validate"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
