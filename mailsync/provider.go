// Package mailsync pulls connected mailboxes into the emails table: a bounded
// newest-first batch on first contact, then provider change feeds from a stored
// cursor. Messages that look like marketplace listing alerts get their bodies
// backfilled and their listing links fed to the reconciler.
package mailsync

import (
	"context"
	"errors"

	"dealscout/models"
)

// ErrCursorExpired means the provider no longer honors the stored sync cursor
// and the mailbox must be resynced from scratch. Detected with errors.Is.
var ErrCursorExpired = errors.New("sync cursor expired")

// ChangePage is one page of a provider change feed. Cursor is the value to
// persist (or pass to the next call while More is set); an empty Cursor means
// the page carried none and the previous one stays valid.
type ChangePage struct {
	Added      []models.RawMessage
	RemovedIDs []string
	Cursor     string
	More       bool
}

// Provider is one mailbox API. Implementations normalize provider payloads
// into models.RawMessage and surface cursor staleness as ErrCursorExpired.
type Provider interface {
	Name() string
	// ListRecent returns up to max messages, newest first. Bodies are left
	// empty; the backfill pass fetches them selectively.
	ListRecent(ctx context.Context, token string, max int) ([]models.RawMessage, error)
	// Changes returns one page of the change feed. An empty cursor seeds a
	// fresh one; for providers whose seeding walks the mailbox, the returned
	// messages are meant to be re-upserted harmlessly.
	Changes(ctx context.Context, token, cursor string) (*ChangePage, error)
	FetchBody(ctx context.Context, token, messageID string) (string, error)
}
