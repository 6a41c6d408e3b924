// Package store defines the persistence collaborators the conversation
// engine depends on, plus the bundled adapters (in-memory, SQLite, Postgres).
package store

import (
	"context"
	"errors"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/model/user"
)

var (
	// ErrProfileNotFound signals that no profile row exists for the user.
	ErrProfileNotFound = errors.New("store: profile not found")
)

// ProfileStore resolves user identity and personality traits.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (user.Profile, error)
}

// ContextStore persists conversation history, rolling summaries, and serves
// similarity lookups over past user messages.
type ContextStore interface {
	// RecentHistory returns up to limit most recent messages, oldest first.
	RecentHistory(ctx context.Context, userID string, limit int) ([]chat.Message, error)
	// Summary returns the user's rolling summary, or "" when none exists.
	Summary(ctx context.Context, userID string) (string, error)
	// QuerySimilar returns past user messages related to the given message.
	QuerySimilar(ctx context.Context, userID, message string, limit int) ([]string, error)
	// SaveTurn stores one user/ai message pair.
	SaveTurn(ctx context.Context, userMsg, aiMsg chat.Message) error
	// SaveMessage stores a single message, e.g. a greeting with no user side.
	SaveMessage(ctx context.Context, msg chat.Message) error
	// SaveSummary replaces the user's rolling summary (delete then insert).
	SaveSummary(ctx context.Context, userID, summary string) error
	// CountMessages reports the total number of stored messages for the user.
	CountMessages(ctx context.Context, userID string) (int, error)
}
