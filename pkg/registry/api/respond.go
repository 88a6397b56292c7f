package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-registry/pkg/registry"
)

// ErrorDetail is one entry of an error response
type ErrorDetail struct {
	Detail string `json:"detail"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Errors []ErrorDetail `json:"errors"`
}

// PublishResponse is the body of a successful publish. Warnings is empty when
// no diagnostics were collected and holds a single bag otherwise.
type PublishResponse struct {
	Warnings []registry.PublishWarnings `json:"warnings"`
}

// NewPublishResponse builds the success body for a publish result
func NewPublishResponse(result *registry.PublishResult) PublishResponse {
	resp := PublishResponse{Warnings: []registry.PublishWarnings{}}
	if result != nil && !result.Warnings.Empty() {
		resp.Warnings = append(resp.Warnings, result.Warnings)
	}
	return resp
}

// RespondError maps err to its status and writes the error envelope.
// Server-side failures are logged with their cause and reported as "unexpected error".
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status := registry.Status(err)
	kind := registry.KindOf(err)

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "kind", kind.String(), "error", err)
	} else {
		slog.Info("Request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind.String(), "error", err)
	}

	writeErrors(w, r, status, registry.Detail(err))
}

func writeErrors(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Errors: []ErrorDetail{{Detail: detail}}})
}
