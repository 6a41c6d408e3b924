package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/model/user"
)

// MemoryProfileStore implements ProfileStore with an in-memory map, suitable
// for development and tests.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]user.Profile
}

// NewMemoryProfileStore returns a store preloaded with the supplied profiles.
func NewMemoryProfileStore(profiles ...user.Profile) *MemoryProfileStore {
	s := &MemoryProfileStore{profiles: make(map[string]user.Profile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

// Put inserts or replaces a profile.
func (s *MemoryProfileStore) Put(p user.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// GetProfile looks up a profile by user id.
func (s *MemoryProfileStore) GetProfile(_ context.Context, userID string) (user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return user.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// MemoryContextStore implements ContextStore in memory.
type MemoryContextStore struct {
	mu        sync.RWMutex
	messages  map[string][]chat.Message
	summaries map[string]string
}

// NewMemoryContextStore bootstraps an empty in-memory context store.
func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{
		messages:  make(map[string][]chat.Message),
		summaries: make(map[string]string),
	}
}

// RecentHistory returns up to limit most recent messages, oldest first.
func (s *MemoryContextStore) RecentHistory(_ context.Context, userID string, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)
	return copied, nil
}

// Summary returns the stored rolling summary, or "" when absent.
func (s *MemoryContextStore) Summary(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries[userID], nil
}

// QuerySimilar ranks past user messages by token overlap with the query.
func (s *MemoryContextStore) QuerySimilar(_ context.Context, userID, message string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		text  string
		score int
	}

	query := tokenize(message)
	var candidates []scored
	for _, msg := range s.messages[userID] {
		if msg.Sender != chat.SenderUser {
			continue
		}
		if score := overlap(query, tokenize(msg.Content)); score > 0 {
			candidates = append(candidates, scored{text: msg.Content, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]string, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.text)
	}
	return results, nil
}

// SaveTurn appends the user/ai message pair.
func (s *MemoryContextStore) SaveTurn(_ context.Context, userMsg, aiMsg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range []chat.Message{userMsg, aiMsg} {
		s.append(msg)
	}
	return nil
}

// SaveMessage appends a single message.
func (s *MemoryContextStore) SaveMessage(_ context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(msg)
	return nil
}

func (s *MemoryContextStore) append(msg chat.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.UserID] = append(s.messages[msg.UserID], msg)
}

// SaveSummary overwrites the user's rolling summary.
func (s *MemoryContextStore) SaveSummary(_ context.Context, userID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[userID] = summary
	return nil
}

// CountMessages reports the total stored messages for the user.
func (s *MemoryContextStore) CountMessages(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[userID]), nil
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,!?\"'()")
		if len([]rune(token)) < 2 {
			continue
		}
		tokens[token] = struct{}{}
	}
	return tokens
}

func overlap(a, b map[string]struct{}) int {
	count := 0
	for token := range a {
		if _, ok := b[token]; ok {
			count++
		}
	}
	return count
}

var (
	_ ProfileStore = (*MemoryProfileStore)(nil)
	_ ContextStore = (*MemoryContextStore)(nil)
)
