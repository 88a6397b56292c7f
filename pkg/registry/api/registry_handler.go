package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-registry/pkg/registry"
)

// DefaultMaxPublishBytes is used when the handler is built without a limit
const DefaultMaxPublishBytes int64 = 10 << 20

// RegistryHandler serves the publish and read endpoints
type RegistryHandler struct {
	publisher       registry.Publisher
	maxPublishBytes int64
}

func NewRegistryHandler(publisher registry.Publisher, maxPublishBytes int64) *RegistryHandler {
	if maxPublishBytes <= 0 {
		maxPublishBytes = DefaultMaxPublishBytes
	}
	return &RegistryHandler{
		publisher:       publisher,
		maxPublishBytes: maxPublishBytes,
	}
}

// Routes returns the router for crate endpoints
func (h *RegistryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Put("/new", h.Publish)
	r.Get("/{name}", h.GetPackage)
	r.Get("/{name}/{version}", h.GetVersion)
	return r
}

// VersionsResponse lists the registered versions of a package, oldest first
type VersionsResponse struct {
	Name     string                    `json:"name"`
	Versions []*registry.PackageRecord `json:"versions"`
}

// Publish accepts a framed publish body
func (h *RegistryHandler) Publish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPublishBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Info("Publish body too large", "limit", tooLarge.Limit)
			writeErrors(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		slog.Error("Failed to read publish body", "error", err)
		writeErrors(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.publisher.Publish(r.Context(), body)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewPublishResponse(result))
}

// GetPackage lists the registered versions of a package
func (h *RegistryHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	info, err := h.publisher.GetPackage(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		RespondError(w, r, err)
		return
	}

	render.JSON(w, r, VersionsResponse{Name: info.Name, Versions: info.Versions})
}

// GetVersion returns a single registered version
func (h *RegistryHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	record, err := h.publisher.GetVersion(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "version"))
	if err != nil {
		RespondError(w, r, err)
		return
	}

	render.JSON(w, r, record)
}
