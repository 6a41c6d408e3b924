package ws

// Inbound frame types.
const (
	frameText  = "text"
	frameVoice = "voice"
)

// Voice commands.
const (
	commandStart = "start"
	commandEnd   = "end"
)

// Voice status values reported to the client.
const (
	statusReady      = "ready"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// inboundFrame is the single envelope clients send over the socket. Text
// turns carry content; voice frames carry either a command or an audio chunk.
type inboundFrame struct {
	Type             string `json:"type"`
	Content          string `json:"content,omitempty"`
	Command          string `json:"command,omitempty"`
	AudioChunkBase64 string `json:"audioChunkBase64,omitempty"`
	IsVoiceActive    bool   `json:"isVoiceActive,omitempty"`
}

// replyFrame delivers an AI reply, optionally with synthesized audio.
type replyFrame struct {
	From        string `json:"from"`
	Message     string `json:"message"`
	AudioBase64 string `json:"audioBase64,omitempty"`
	AudioFormat string `json:"audioFormat,omitempty"`
}

// voiceStatusFrame reports utterance-cycle state transitions. Status events
// are additive; the reply frame still arrives separately.
type voiceStatusFrame struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// transcriptionFrame echoes what the recognizer heard before the reply.
type transcriptionFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// heartbeatFrame keeps idle connections alive through proxies.
type heartbeatFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
}

// errorFrame is the error envelope, matching the REST error shape.
type errorFrame struct {
	Error string `json:"error"`
}

func voiceStatus(status, message string) voiceStatusFrame {
	return voiceStatusFrame{Type: "voice_status", Status: status, Message: message}
}
