package middleware

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// WriteError renders an ErrorResponse with status.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: code, Detail: detail})
}
