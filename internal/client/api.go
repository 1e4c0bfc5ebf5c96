// Package client implements the HTTP transport to the exposure backend.
// Real and decoy traffic go through the same methods so the two are
// indistinguishable on the wire.
package client

import (
	"context"
	"time"

	"github.com/mkraev/venuetrace/internal/models"
)

// Feed is one round of the problematic-event feed. Raw is the undecoded
// binary batch (nil when the server had nothing new); BundleTag is the
// server cursor from the response header, nil when absent.
type Feed struct {
	Raw       []byte
	BundleTag *int64
}

// API is the backend surface consumed by the sync and reporting layers.
type API interface {
	// FetchProblematicEvents requests the feed incrementally from
	// lastBundleTag (nil fetches from the beginning).
	FetchProblematicEvents(ctx context.Context, lastBundleTag *int64) (*Feed, error)

	// ValidateCode exchanges a one-time covid code for a bearer token.
	// A 404 maps to common.ErrInvalidCode.
	ValidateCode(ctx context.Context, code string, fake bool) (string, error)

	// SubmitKeys uploads exposure keys under the bearer token.
	SubmitKeys(ctx context.Context, token string, onset time.Time, fake bool) error

	// SubmitCheckIns uploads the selected check-ins under the same token.
	SubmitCheckIns(ctx context.Context, token string, checkIns []models.CheckInRecord, fake bool) error
}

// Verifier checks the detached signature of a feed payload. Implementations
// wrap the platform's pinned trust anchors; a nil Verifier accepts all
// payloads.
type Verifier interface {
	Verify(body []byte, signature string) error
}
