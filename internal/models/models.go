package models

import "time"

// Derivation records how an asset came to exist. It is informational
// provenance and never changes after the record is created.
const (
	DerivationUploaded = "uploaded"
	DerivationTrimmed  = "trimmed"
	DerivationMerged   = "merged"
)

// VideoAsset is a registered video payload plus its metadata record. The
// metadata row is authoritative for existence; StorageKey locates the payload
// bytes inside the media directory.
type VideoAsset struct {
	ID              string
	StorageKey      string
	DurationSeconds int64
	SizeBytes       int64
	Title           string
	Derivation      string
	CreatedAt       time.Time
}

// ShareToken grants time-bounded playback access to a single asset. The token
// string is random and opaque; it is never derived from the asset id.
type ShareToken struct {
	Token     string
	VideoID   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t ShareToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
