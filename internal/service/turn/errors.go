package turn

import "errors"

// Errors that end a turn outright.
var (
	// ErrIdentity means the user's profile could not be loaded; no reply
	// can be personalized without it.
	ErrIdentity = errors.New("user profile unavailable")

	// ErrModel means the language model call itself failed.
	ErrModel = errors.New("model invocation failed")
)

// Errors the turn absorbs and degrades around.
var (
	// ErrContextDegraded marks a turn that ran with placeholder context
	// because one or more optional sources failed.
	ErrContextDegraded = errors.New("context partially unavailable")

	// ErrTranscription means speech-to-text failed for a voice utterance.
	ErrTranscription = errors.New("transcription failed")

	// ErrSynthesis means text-to-speech failed; the reply falls back to a
	// placeholder clip.
	ErrSynthesis = errors.New("speech synthesis failed")

	// ErrPersistence means saving the turn or summary failed; the reply
	// is still delivered.
	ErrPersistence = errors.New("persistence failed")
)
