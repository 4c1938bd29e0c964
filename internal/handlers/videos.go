package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clipvault/backend/internal/clips"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/share"
)

// VideoHandler provides the video lifecycle endpoints.
type VideoHandler struct {
	Clips          ClipService
	Limiter        RateLimiter
	PublicBaseURL  string
	MaxUploadBytes int64
}

// Upload handles POST /videos/upload.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "upload") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"message": "Too many requests."})
		return
	}

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		logger.Warn("invalid upload payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "A video file is required."})
		return
	}
	defer file.Close()

	asset, err := h.Clips.Upload(ctx, file, header.Filename)
	if err != nil {
		if errors.Is(err, clips.ErrInvalidDuration) {
			logger.Warn("upload rejected by duration policy", "filename", header.Filename, "error", err)
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "Invalid video duration."})
			return
		}
		logger.Error("upload failed", "filename", header.Filename, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"message": "Internal server error."})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]string{
		"id":      asset.ID,
		"message": "Video uploaded successfully.",
	})
}

type trimRequest struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Trim handles POST /videos/trim.
func (h VideoHandler) Trim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "trim") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"message": "Too many requests."})
		return
	}

	var req trimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid trim payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "Invalid request body."})
		return
	}

	start := secondsToDuration(req.Start)
	end := secondsToDuration(req.End)

	if _, err := h.Clips.Trim(ctx, req.ID, start, end); err != nil {
		switch {
		case errors.Is(err, clips.ErrInvalidRange):
			logger.Warn("trim range rejected", "videoId", req.ID, "start", req.Start, "end", req.End)
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "Invalid trim range."})
		case errors.Is(err, clips.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"message": "Video not found."})
		default:
			logger.Error("trim failed", "videoId", req.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"message": "Error trimming video."})
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Video trimmed successfully."})
}

type mergeRequest struct {
	VideoIDs []string `json:"videoIds"`
}

// Merge handles POST /videos/merge.
func (h VideoHandler) Merge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "merge") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"message": "Too many requests."})
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid merge payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "Invalid request body."})
		return
	}

	asset, err := h.Clips.Merge(ctx, req.VideoIDs)
	if err != nil {
		var missing *clips.MissingAssetError
		switch {
		case errors.As(err, &missing):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("Video with ID %s not found.", missing.ID)})
		case errors.Is(err, clips.ErrNoSources):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "At least one video id is required."})
		default:
			logger.Error("merge failed", "videoIds", req.VideoIDs, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"message": "Error merging videos."})
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{
		"id":      asset.ID,
		"message": "Videos merged successfully.",
	})
}

type shareRequest struct {
	ID     string `json:"id"`
	Expiry int64  `json:"expiry"`
}

type shareResponse struct {
	Link      string `json:"link"`
	ExpiresAt string `json:"expires_at"`
}

// Share handles POST /videos/share.
func (h VideoHandler) Share(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "share") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"message": "Too many requests."})
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid share payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "Invalid request body."})
		return
	}

	token, err := h.Clips.Share(ctx, req.ID, time.Duration(req.Expiry)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, clips.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"message": "Video not found."})
		case errors.Is(err, share.ErrInvalidTTL):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": "Expiry must be a positive number of seconds."})
		default:
			logger.Error("share failed", "videoId", req.ID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"message": "Internal server error."})
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, shareResponse{
		Link:      fmt.Sprintf("%s/videos/watch/%s", strings.TrimSuffix(h.PublicBaseURL, "/"), token.Token),
		ExpiresAt: token.ExpiresAt.Format(time.RFC3339),
	})
}

// Watch handles GET /videos/watch/{token}. Unknown and expired tokens both
// deny access; the status codes differ but neither leaks more detail.
func (h VideoHandler) Watch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	tokenID := strings.TrimPrefix(r.URL.Path, "/videos/watch/")
	if tokenID == "" || strings.Contains(tokenID, "/") {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"message": "Link not found."})
		return
	}

	_, path, err := h.Clips.Watch(ctx, tokenID)
	if err != nil {
		switch {
		case errors.Is(err, share.ErrExpired):
			respondJSON(ctx, w, http.StatusForbidden, map[string]string{"message": "Link expired."})
		case errors.Is(err, clips.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"message": "Link not found."})
		default:
			logger.Error("watch failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"message": "Internal server error."})
		}
		return
	}

	http.ServeFile(w, r, path)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
