package handlers

import (
	"net/http"

	"github.com/clipvault/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Clips          ClipService
	Limiter        RateLimiter
	APIToken       string
	PublicBaseURL  string
	MaxUploadBytes int64
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Mutating
// routes sit behind the static API token; watch and health are public.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	videos := VideoHandler{
		Clips:          deps.Clips,
		Limiter:        deps.Limiter,
		PublicBaseURL:  deps.PublicBaseURL,
		MaxUploadBytes: deps.MaxUploadBytes,
	}

	guarded := middleware.RequireAPIToken(deps.APIToken)

	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/videos/upload", guarded(http.HandlerFunc(videos.Upload)))
	mux.Handle("/videos/trim", guarded(http.HandlerFunc(videos.Trim)))
	mux.Handle("/videos/merge", guarded(http.HandlerFunc(videos.Merge)))
	mux.Handle("/videos/share", guarded(http.HandlerFunc(videos.Share)))
	mux.HandleFunc("/videos/watch/", videos.Watch)
}
