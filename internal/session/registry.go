// Package session owns the live per-connection conversation state: the voice
// buffer, voice timing state, and the per-session turn counter. All reads and
// writes of that state go through the registry's exclusive accessor so the
// inbound frame handler and the background silence checker never race.
package session

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrDuplicateSession is returned when a user already has a live session.
	ErrDuplicateSession = errors.New("session: user already connected")
	// ErrSessionNotFound is returned by WithSession after disconnect.
	ErrSessionNotFound = errors.New("session: not found")
)

// DefaultSilenceTimeout closes an utterance after this much silence.
const DefaultSilenceTimeout = 1500 * time.Millisecond

// VoiceState tracks utterance segmentation for one session.
type VoiceState struct {
	IsProcessing      bool
	LastVoiceDetected time.Time
	SilenceTimeout    time.Duration
}

// Session is the per-user connection state. It is owned exclusively by the
// Registry; other components only borrow it inside WithSession.
type Session struct {
	UserID string

	voiceBuffer []byte
	voice       VoiceState
	turnCount   int
}

// AppendVoice buffers an audio chunk. Chunks flagged as active speech reset
// the silence clock and clear the processing flag.
func (s *Session) AppendVoice(chunk []byte, active bool, now time.Time) {
	s.voiceBuffer = append(s.voiceBuffer, chunk...)
	if active {
		s.voice.LastVoiceDetected = now
		s.voice.IsProcessing = false
	}
}

// ResetVoice clears the buffer and processing flag ("voice start" command).
func (s *Session) ResetVoice(now time.Time) {
	s.voiceBuffer = nil
	s.voice.IsProcessing = false
	s.voice.LastVoiceDetected = now
}

// BufferedVoice reports how many bytes are waiting for segmentation.
func (s *Session) BufferedVoice() int {
	return len(s.voiceBuffer)
}

// Processing reports whether an utterance cycle is in flight.
func (s *Session) Processing() bool {
	return s.voice.IsProcessing
}

// BeginUtterance closes the current utterance when the silence timeout has
// elapsed. On success it marks the session as processing and detaches the
// buffered audio; chunks arriving afterwards start the next utterance.
func (s *Session) BeginUtterance(now time.Time) ([]byte, bool) {
	if s.voice.IsProcessing || len(s.voiceBuffer) == 0 {
		return nil, false
	}
	if now.Sub(s.voice.LastVoiceDetected) <= s.voice.SilenceTimeout {
		return nil, false
	}
	return s.detachUtterance(), true
}

// ForceUtterance closes the current utterance regardless of the silence
// timeout ("voice end" command). Returns false when the buffer is empty.
func (s *Session) ForceUtterance() ([]byte, bool) {
	if len(s.voiceBuffer) == 0 {
		return nil, false
	}
	return s.detachUtterance(), true
}

func (s *Session) detachUtterance() []byte {
	audio := s.voiceBuffer
	s.voiceBuffer = nil
	s.voice.IsProcessing = true
	return audio
}

// EndUtterance clears the processing flag once transcription and the reply
// cycle have finished, successfully or not.
func (s *Session) EndUtterance() {
	s.voice.IsProcessing = false
}

// NextTurn bumps and returns the session's 1-indexed turn counter. This is
// distinct from the daily rate-limit counter.
func (s *Session) NextTurn() int {
	s.turnCount++
	return s.turnCount
}

// Turns returns the number of turns taken so far.
func (s *Session) Turns() int {
	return s.turnCount
}

// Registry holds the live set of sessions keyed by user id.
type Registry struct {
	mu             sync.Mutex
	sessions       map[string]*Session
	silenceTimeout time.Duration
}

// NewRegistry creates an empty registry. A non-positive silenceTimeout falls
// back to DefaultSilenceTimeout.
func NewRegistry(silenceTimeout time.Duration) *Registry {
	if silenceTimeout <= 0 {
		silenceTimeout = DefaultSilenceTimeout
	}
	return &Registry{
		sessions:       make(map[string]*Session),
		silenceTimeout: silenceTimeout,
	}
}

// Register records a live session for the user. A second connection for the
// same user is rejected with ErrDuplicateSession.
func (r *Registry) Register(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[userID]; exists {
		return ErrDuplicateSession
	}
	r.sessions[userID] = &Session{
		UserID: userID,
		voice: VoiceState{
			LastVoiceDetected: time.Now(),
			SilenceTimeout:    r.silenceTimeout,
		},
	}
	return nil
}

// Unregister removes the user's session. Removing an absent session is a no-op.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// WithSession runs fn against the user's session under exclusive access.
func (r *Registry) WithSession(userID string, fn func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	fn(sess)
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
