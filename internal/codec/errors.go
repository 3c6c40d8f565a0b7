package codec

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/rx-inference-gateway/internal/domain"
)

// ErrorResponse represents an error response ready to be written.
type ErrorResponse struct {
	StatusCode int
	Body       []byte
}

// FormatError converts any error into the gateway's JSON error body:
//
//	{"error": "<message>", "code": "<kind>"}
func FormatError(err error) *ErrorResponse {
	apiErr := domain.ToAPIError(err)

	body, _ := json.Marshal(map[string]string{
		"error": apiErr.Message,
		"code":  string(apiErr.Kind),
	})

	return &ErrorResponse{
		StatusCode: apiErr.HTTPStatusCode(),
		Body:       body,
	}
}

// WriteError writes an error response with the status derived from its kind.
func WriteError(w http.ResponseWriter, err error) {
	resp := FormatError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
