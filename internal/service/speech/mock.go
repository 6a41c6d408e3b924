package speech

import (
	"context"
	"sync"
)

// MockTranscriber is a test double that returns a scripted transcript.
type MockTranscriber struct {
	mu     sync.Mutex
	Text   string
	Err    error
	Audios [][]byte
}

func (m *MockTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Audios = append(m.Audios, audio)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

// MockSynthesizer is a test double that records synthesized texts.
type MockSynthesizer struct {
	mu    sync.Mutex
	Clip  Audio
	Err   error
	Texts []string
}

func (m *MockSynthesizer) Synthesize(_ context.Context, text string) (Audio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, text)
	if m.Err != nil {
		return Audio{}, m.Err
	}
	return m.Clip, nil
}

// Synthesized returns a copy of the texts seen so far.
func (m *MockSynthesizer) Synthesized() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Texts))
	copy(out, m.Texts)
	return out
}

var (
	_ Transcriber = (*MockTranscriber)(nil)
	_ Synthesizer = (*MockSynthesizer)(nil)
)
