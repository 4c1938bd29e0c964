// Package share issues and validates time-bounded playback tokens.
package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/repositories"
)

var (
	// ErrInvalidTTL indicates a non-positive time to live.
	ErrInvalidTTL = errors.New("ttl must be positive")
	// ErrExpired indicates the token exists but is past its expiry.
	ErrExpired = errors.New("share token expired")
	// ErrNotFound mirrors the repository sentinel.
	ErrNotFound = repositories.ErrNotFound
)

const tokenBytes = 32

// Registry issues unguessable share tokens and answers playback authorization
// queries. Validity is recomputed on every Resolve call; nothing is cached.
type Registry struct {
	tokens repositories.ShareTokenRepository
	now    func() time.Time
}

// NewRegistry constructs a Registry over the provided token repository.
func NewRegistry(tokens repositories.ShareTokenRepository) *Registry {
	return &Registry{tokens: tokens, now: func() time.Time { return time.Now().UTC() }}
}

// Issue creates a token for videoID that expires after ttl. The token string
// is random: deriving it from the asset id would make links enumerable.
func (r *Registry) Issue(ctx context.Context, videoID string, ttl time.Duration) (models.ShareToken, error) {
	if ttl <= 0 {
		return models.ShareToken{}, ErrInvalidTTL
	}

	value, err := newTokenValue()
	if err != nil {
		return models.ShareToken{}, err
	}

	now := r.now()
	token := models.ShareToken{
		Token:     value,
		VideoID:   videoID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := r.tokens.Create(ctx, token); err != nil {
		return models.ShareToken{}, fmt.Errorf("persist share token: %w", err)
	}

	return token, nil
}

// Resolve returns the video id a token grants access to. ErrNotFound and
// ErrExpired are distinct for diagnostics even though callers present both as
// the same denial.
func (r *Registry) Resolve(ctx context.Context, tokenID string) (string, error) {
	token, err := r.tokens.Get(ctx, tokenID)
	if err != nil {
		return "", err
	}

	if token.Expired(r.now()) {
		return "", ErrExpired
	}

	return token.VideoID, nil
}

func newTokenValue() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
