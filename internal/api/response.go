package api

import (
	"encoding/json"
	"net/http"

	trelliserrors "github.com/chartwell/trellis/internal/errors"
)

// APIError is the JSON body returned for failed requests.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSONResponse writes data as JSON with status 200.
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// JSONResponseStatus writes data as JSON with the given status code.
func JSONResponseStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// JSONError writes a plain error message with the given status code.
func JSONError(w http.ResponseWriter, message string, status int) {
	JSONResponseStatus(w, status, APIError{Error: message})
}

// HandleError writes an error response. TrellisError values map to
// their category's HTTP status and carry their code; anything else is
// a 500 with the raw message.
func HandleError(w http.ResponseWriter, err error) {
	if te := trelliserrors.AsTrellisError(err); te != nil {
		JSONResponseStatus(w, te.HTTPStatus(), APIError{
			Error: te.What,
			Code:  string(te.Code),
		})
		return
	}
	JSONError(w, err.Error(), http.StatusInternalServerError)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
