// Package ws exposes the realtime conversation socket: text turns, buffered
// voice chunks with silence-based segmentation, and the reply stream.
package ws

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pairing-buds/companion/internal/service/speech"
	"github.com/pairing-buds/companion/internal/service/turn"
	"github.com/pairing-buds/companion/internal/session"
)

// DefaultHeartbeatInterval is how often the server pings idle clients.
const DefaultHeartbeatInterval = 30 * time.Second

// Handler runs one websocket connection per user.
type Handler struct {
	registry    *session.Registry
	orch        *turn.Orchestrator
	transcriber speech.Transcriber

	heartbeat     time.Duration
	checkInterval time.Duration
	upgrader      websocket.Upgrader

	turnMu sync.Mutex
	turns  map[string]*sync.Mutex
}

// New wires the websocket handler. transcriber may be nil; voice frames are
// then rejected with an error frame.
func New(registry *session.Registry, orch *turn.Orchestrator, transcriber speech.Transcriber) *Handler {
	return &Handler{
		registry:      registry,
		orch:          orch,
		transcriber:   transcriber,
		heartbeat:     DefaultHeartbeatInterval,
		checkInterval: session.DefaultCheckInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		turns: make(map[string]*sync.Mutex),
	}
}

// turnLock returns the mutex serializing conversational turns for one user.
// The read loop and the segmenter goroutine both start turns; only one may
// be in flight per session at a time.
func (h *Handler) turnLock(userID string) *sync.Mutex {
	h.turnMu.Lock()
	defer h.turnMu.Unlock()
	mu := h.turns[userID]
	if mu == nil {
		mu = &sync.Mutex{}
		h.turns[userID] = mu
	}
	return mu
}

func (h *Handler) releaseTurnLock(userID string) {
	h.turnMu.Lock()
	defer h.turnMu.Unlock()
	delete(h.turns, userID)
}

// RegisterRoutes mounts the socket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{userID}", h.handleWebSocket)
}

// frameWriter abstracts the connection so frame routing is testable.
type frameWriter interface {
	writeFrame(v any) error
}

// safeConn serializes writes; gorilla connections allow one writer at a time
// and here the read loop, segmenter and heartbeat all send frames.
type safeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *safeConn) writeFrame(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}

	rawConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer rawConn.Close()
	conn := &safeConn{conn: rawConn}

	if err := h.registry.Register(userID); err != nil {
		log.Printf("[websocket] rejected connection for user=%s: %v", userID, err)
		conn.writeFrame(errorFrame{Error: "already connected"})
		return
	}
	defer h.registry.Unregister(userID)
	defer h.releaseTurnLock(userID)

	log.Printf("[websocket] new connection for user=%s", userID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	seg := session.NewSegmenter(h.registry, h.checkInterval, h.voiceDispatch(conn))
	go seg.Watch(ctx, userID)
	go h.heartbeatLoop(ctx, conn, userID)

	greeting, err := h.orch.Greet(ctx, userID)
	if err != nil {
		log.Printf("[websocket] greeting failed for user=%s: %v", userID, err)
		if errors.Is(err, turn.ErrIdentity) {
			conn.writeFrame(errorFrame{Error: "unknown user"})
		} else {
			conn.writeFrame(errorFrame{Error: "greeting failed"})
		}
		return
	}
	h.sendReply(conn, greeting)

	for {
		var frame inboundFrame
		if err := rawConn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error for user=%s: %v", userID, err)
			}
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				conn.writeFrame(errorFrame{Error: "malformed frame"})
			}
			return
		}
		h.routeFrame(ctx, conn, seg, userID, frame)
	}
}

// routeFrame handles one inbound frame. Unknown types get an error frame but
// keep the connection open.
func (h *Handler) routeFrame(ctx context.Context, conn frameWriter, seg *session.Segmenter, userID string, frame inboundFrame) {
	switch frame.Type {
	case frameText:
		h.handleText(ctx, conn, userID, frame.Content)
	case frameVoice:
		h.handleVoiceFrame(ctx, conn, seg, userID, frame)
	default:
		conn.writeFrame(errorFrame{Error: "unsupported message type: " + frame.Type})
	}
}

func (h *Handler) handleText(ctx context.Context, conn frameWriter, userID, content string) {
	if content == "" {
		conn.writeFrame(errorFrame{Error: "message required"})
		return
	}
	h.runTurn(ctx, conn, userID, content, false)
}

func (h *Handler) handleVoiceFrame(ctx context.Context, conn frameWriter, seg *session.Segmenter, userID string, frame inboundFrame) {
	switch {
	case frame.Command == commandStart:
		err := h.registry.WithSession(userID, func(sess *session.Session) {
			sess.ResetVoice(time.Now())
		})
		if err != nil {
			log.Printf("[websocket] voice start for user=%s: %v", userID, err)
			return
		}
		conn.writeFrame(voiceStatus(statusReady, ""))
	case frame.Command == commandEnd:
		if err := seg.Flush(ctx, userID); err != nil {
			log.Printf("[websocket] flush failed for user=%s: %v", userID, err)
		}
	case frame.AudioChunkBase64 != "":
		h.handleAudioChunk(conn, userID, frame)
	default:
		conn.writeFrame(errorFrame{Error: "invalid voice frame"})
	}
}

func (h *Handler) handleAudioChunk(conn frameWriter, userID string, frame inboundFrame) {
	if h.transcriber == nil {
		conn.writeFrame(errorFrame{Error: "voice unavailable"})
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(frame.AudioChunkBase64)
	if err != nil {
		conn.writeFrame(errorFrame{Error: "invalid audio payload"})
		return
	}
	if len(chunk) == 0 {
		return
	}
	err = h.registry.WithSession(userID, func(sess *session.Session) {
		sess.AppendVoice(chunk, frame.IsVoiceActive, time.Now())
	})
	if err != nil {
		log.Printf("[websocket] dropping audio chunk for user=%s: %v", userID, err)
	}
}

// voiceDispatch builds the segmenter callback: transcribe the utterance, echo
// the transcript, then run a full reply turn.
func (h *Handler) voiceDispatch(conn frameWriter) session.DispatchFunc {
	return func(ctx context.Context, userID string, audio []byte) {
		conn.writeFrame(voiceStatus(statusProcessing, ""))

		if h.transcriber == nil {
			conn.writeFrame(voiceStatus(statusError, "voice unavailable"))
			return
		}
		text, err := h.transcriber.Transcribe(ctx, audio)
		if err != nil {
			log.Printf("[websocket] transcription failed for user=%s: %v", userID, err)
			conn.writeFrame(voiceStatus(statusError, "transcription failed"))
			return
		}
		if text == "" {
			log.Printf("[websocket] empty transcript for user=%s, skipping turn", userID)
			conn.writeFrame(voiceStatus(statusCompleted, ""))
			return
		}
		conn.writeFrame(transcriptionFrame{Type: "voice_transcription", Text: text})

		h.runTurn(ctx, conn, userID, text, true)
		conn.writeFrame(voiceStatus(statusCompleted, ""))
	}
}

func (h *Handler) runTurn(ctx context.Context, conn frameWriter, userID, message string, voice bool) {
	mu := h.turnLock(userID)
	mu.Lock()
	defer mu.Unlock()

	turnNo := 0
	err := h.registry.WithSession(userID, func(sess *session.Session) {
		turnNo = sess.NextTurn()
	})
	if err != nil {
		log.Printf("[websocket] dropping turn for user=%s: %v", userID, err)
		return
	}

	reply, err := h.orch.HandleTurn(ctx, turn.Request{
		UserID:     userID,
		Message:    message,
		IsVoice:    voice,
		TurnNumber: turnNo,
	})
	if err != nil {
		log.Printf("[websocket] turn failed for user=%s: %v", userID, err)
		if errors.Is(err, turn.ErrIdentity) {
			conn.writeFrame(errorFrame{Error: "unknown user"})
		} else {
			conn.writeFrame(errorFrame{Error: "reply generation failed"})
		}
		return
	}
	h.sendReply(conn, reply)
}

func (h *Handler) sendReply(conn frameWriter, reply turn.Reply) {
	frame := replyFrame{From: "ai", Message: reply.Text}
	if len(reply.Audio) > 0 {
		frame.AudioBase64 = base64.StdEncoding.EncodeToString(reply.Audio)
		frame.AudioFormat = reply.AudioFormat
	}
	conn.writeFrame(frame)
}

func (h *Handler) heartbeatLoop(ctx context.Context, conn frameWriter, userID string) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			frame := heartbeatFrame{Type: "heartbeat", Timestamp: t.UTC().Format(time.RFC3339)}
			if err := conn.writeFrame(frame); err != nil {
				log.Printf("[websocket] heartbeat write failed for user=%s: %v", userID, err)
				return
			}
		}
	}
}
