package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ford-at-home/ecko/internal/api/v1/dto"
	"github.com/ford-at-home/ecko/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError translates an error into the uniform envelope. Unclassified
// errors become a generic internal response; their text never reaches the
// client.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), dto.ErrorResponse{
		Error: dto.ErrorBody{
			Kind:    string(apperr.KindOf(err)),
			Message: apperr.MessageOf(err),
		},
	})
}

// writeAuthRequired reports a request that reached a handler without a
// verified identity attached.
func writeAuthRequired(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, dto.ErrorResponse{
		Error: dto.ErrorBody{
			Kind:    string(apperr.KindUnauthenticated),
			Message: "Not authenticated",
		},
	})
}

// writeValidation reports a request-shape problem detected at the handler
// boundary, before any service logic runs.
func writeValidation(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
		Error: dto.ErrorBody{
			Kind:    string(apperr.KindValidation),
			Message: message,
		},
	})
}
