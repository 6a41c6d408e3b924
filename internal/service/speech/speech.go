// Package speech defines the transcription and synthesis collaborators and
// the bounded worker pool that keeps synthesis off the reply path's critical
// resources.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when a speech collaborator is missing.
	ErrNotConfigured = errors.New("speech: not configured")
)

// Audio is a synthesized clip.
type Audio struct {
	Data   []byte
	Format string
}

// Transcriber converts a buffered utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts reply text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}
