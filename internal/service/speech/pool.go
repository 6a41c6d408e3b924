package speech

import (
	"context"
	"encoding/binary"
	"log"
	"strings"
	"unicode/utf8"
)

// DefaultMaxSpeechRunes bounds how much reply text is spoken aloud.
const DefaultMaxSpeechRunes = 300

// DefaultPoolWorkers bounds concurrent synthesis calls across all sessions.
const DefaultPoolWorkers = 4

// Pool serializes synthesis through a bounded set of slots so a burst of
// voice sessions cannot exhaust the process. Failures fall back to a short
// placeholder clip instead of failing the turn.
type Pool struct {
	synth    Synthesizer
	slots    chan struct{}
	maxRunes int
}

// NewPool creates a synthesis pool with the given number of worker slots.
func NewPool(synth Synthesizer, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultPoolWorkers
	}
	return &Pool{
		synth:    synth,
		slots:    make(chan struct{}, workers),
		maxRunes: DefaultMaxSpeechRunes,
	}
}

// Synthesize truncates text to a sentence boundary, acquires a pool slot and
// runs synthesis. On failure it returns the placeholder clip; the returned
// audio is always usable.
func (p *Pool) Synthesize(ctx context.Context, text string) Audio {
	if p == nil || p.synth == nil {
		return PlaceholderClip()
	}

	spoken := TruncateSentences(text, p.maxRunes)
	if spoken == "" {
		return PlaceholderClip()
	}

	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		log.Printf("[speech] synthesis slot wait cancelled: %v", ctx.Err())
		return PlaceholderClip()
	}

	audio, err := p.synth.Synthesize(ctx, spoken)
	if err != nil {
		log.Printf("[speech] synthesis failed, using placeholder: %v", err)
		return PlaceholderClip()
	}
	if len(audio.Data) == 0 {
		return PlaceholderClip()
	}
	return audio
}

// sentenceEnders close a sentence for speech truncation.
const sentenceEnders = ".!?。！？"

// TruncateSentences trims text to at most maxRunes without ever cutting a
// sentence in half. The first sentence is always kept whole, even when it
// alone exceeds the bound.
func TruncateSentences(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	var (
		kept      []rune
		sentence  []rune
		firstKept bool
	)
	for _, r := range text {
		sentence = append(sentence, r)
		if strings.ContainsRune(sentenceEnders, r) || r == '\n' {
			if !firstKept || len(kept)+len(sentence) <= maxRunes {
				kept = append(kept, sentence...)
				firstKept = true
			}
			sentence = sentence[:0]
		}
	}
	if !firstKept {
		// No sentence boundary at all; speak the whole text.
		return text
	}
	if len(sentence) > 0 && len(kept)+len(sentence) <= maxRunes {
		kept = append(kept, sentence...)
	}
	return strings.TrimSpace(string(kept))
}

// placeholder clip parameters: 16kHz mono PCM16, 200ms of silence.
const (
	placeholderSampleRate = 16000
	placeholderSamples    = placeholderSampleRate / 5
)

// PlaceholderClip returns a short silent WAV clip used when synthesis fails.
func PlaceholderClip() Audio {
	dataLen := placeholderSamples * 2
	buf := make([]byte, 0, 44+dataLen)

	buf = append(buf, []byte("RIFF")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataLen))
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, placeholderSampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, placeholderSampleRate*2)
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, []byte("data")...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))
	buf = append(buf, make([]byte, dataLen)...)

	return Audio{Data: buf, Format: "wav"}
}
