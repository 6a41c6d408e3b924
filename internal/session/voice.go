package session

import (
	"context"
	"time"
)

// DefaultCheckInterval is how often the segmenter wakes to look for silence.
const DefaultCheckInterval = 100 * time.Millisecond

// DispatchFunc receives a completed utterance for transcription and the
// reply cycle. The segmenter keeps the session's processing flag set until
// the function returns.
type DispatchFunc func(ctx context.Context, userID string, audio []byte)

// Segmenter watches a session's voice buffer and closes utterances either on
// silence timeout or on an explicit end command.
type Segmenter struct {
	registry *Registry
	interval time.Duration
	dispatch DispatchFunc
}

// NewSegmenter wires a segmenter to the registry. A non-positive interval
// falls back to DefaultCheckInterval.
func NewSegmenter(registry *Registry, interval time.Duration, dispatch DispatchFunc) *Segmenter {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Segmenter{
		registry: registry,
		interval: interval,
		dispatch: dispatch,
	}
}

// Watch runs the periodic silence check for one session until ctx is
// cancelled or the session is unregistered. Call it in its own goroutine.
func (s *Segmenter) Watch(ctx context.Context, userID string) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			var (
				audio []byte
				ok    bool
			)
			err := s.registry.WithSession(userID, func(sess *Session) {
				audio, ok = sess.BeginUtterance(now)
			})
			if err != nil {
				return
			}
			if ok {
				go s.run(ctx, userID, audio)
			}
		}
	}
}

// Flush closes any buffered utterance immediately, bypassing the silence
// timeout, and runs the dispatch synchronously. An empty buffer is a no-op.
func (s *Segmenter) Flush(ctx context.Context, userID string) error {
	var (
		audio []byte
		ok    bool
	)
	err := s.registry.WithSession(userID, func(sess *Session) {
		audio, ok = sess.ForceUtterance()
	})
	if err != nil {
		return err
	}
	if ok {
		s.run(ctx, userID, audio)
	}
	return nil
}

func (s *Segmenter) run(ctx context.Context, userID string, audio []byte) {
	defer func() {
		_ = s.registry.WithSession(userID, func(sess *Session) {
			sess.EndUtterance()
		})
	}()
	s.dispatch(ctx, userID, audio)
}
