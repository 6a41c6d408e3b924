package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/model/user"
	"github.com/pairing-buds/companion/internal/ratelimit"
	"github.com/pairing-buds/companion/internal/service/ai"
	"github.com/pairing-buds/companion/internal/service/speech"
	"github.com/pairing-buds/companion/internal/store"
)

// scriptedResponder echoes the user message back and records requests.
type scriptedResponder struct {
	mu        sync.Mutex
	replyErr  error
	summary   string
	requests  []ai.ReplyRequest
	summaries int
}

func (r *scriptedResponder) GenerateReply(_ context.Context, req ai.ReplyRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.replyErr != nil {
		return "", r.replyErr
	}
	return "echo: " + req.UserMessage, nil
}

func (r *scriptedResponder) Summarize(_ context.Context, _ string, _ []chat.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries++
	if r.summary == "" {
		return "요약", nil
	}
	return r.summary, nil
}

func (r *scriptedResponder) lastRequest(t *testing.T) ai.ReplyRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		t.Fatalf("no model requests recorded")
	}
	return r.requests[len(r.requests)-1]
}

func newTestOrchestrator(t *testing.T, limit int) (*Orchestrator, *scriptedResponder, *store.MemoryContextStore) {
	t.Helper()
	profiles := store.NewMemoryProfileStore(user.Profile{ID: "u1", Name: "지수", SeclusionScore: 30})
	contexts := store.NewMemoryContextStore()
	responder := &scriptedResponder{}
	pool := speech.NewPool(&speech.MockSynthesizer{Clip: speech.Audio{Data: []byte{9}, Format: "mp3"}}, 1)
	o := NewOrchestrator(ratelimit.NewDaily(limit), NewAggregator(profiles, contexts), responder, contexts, pool)
	return o, responder, contexts
}

func TestHandleTurnRepliesAndPersists(t *testing.T) {
	o, _, contexts := newTestOrchestrator(t, 10)

	reply, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "안녕", TurnNumber: 1})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if reply.Text != "echo: 안녕" {
		t.Fatalf("unexpected reply text %q", reply.Text)
	}
	if reply.RateLimited {
		t.Fatalf("first turn must not be rate limited")
	}

	history, err := contexts.RecentHistory(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user+ai messages persisted, got %d", len(history))
	}
	if history[0].Sender != chat.SenderUser || history[1].Sender != chat.SenderAI {
		t.Fatalf("messages persisted in wrong order: %s, %s", history[0].Sender, history[1].Sender)
	}
}

func TestHandleTurnVoiceCarriesAudio(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, 10)

	reply, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "안녕", IsVoice: true, TurnNumber: 1})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if len(reply.Audio) == 0 || reply.AudioFormat != "mp3" {
		t.Fatalf("voice turn should carry synthesized audio, got format %q", reply.AudioFormat)
	}

	text, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "안녕", TurnNumber: 2})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if len(text.Audio) != 0 {
		t.Fatalf("text turn must not carry audio")
	}
}

func TestHandleTurnSynthesisFailureFallsBack(t *testing.T) {
	profiles := store.NewMemoryProfileStore(user.Profile{ID: "u1", Name: "지수"})
	contexts := store.NewMemoryContextStore()
	responder := &scriptedResponder{}
	pool := speech.NewPool(&speech.MockSynthesizer{Err: errors.New("tts down")}, 1)
	o := NewOrchestrator(ratelimit.NewDaily(10), NewAggregator(profiles, contexts), responder, contexts, pool)

	reply, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "안녕", IsVoice: true, TurnNumber: 1})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if reply.Text != "echo: 안녕" {
		t.Fatalf("text reply must survive synthesis failure")
	}
	if reply.AudioFormat != "wav" || len(reply.Audio) == 0 {
		t.Fatalf("expected placeholder clip, got format %q", reply.AudioFormat)
	}
}

func TestHandleTurnRateLimit(t *testing.T) {
	o, responder, _ := newTestOrchestrator(t, 2)

	for i := 0; i < 2; i++ {
		if _, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "hi", TurnNumber: i + 1}); err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
	}

	reply, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "hi", TurnNumber: 3})
	if err != nil {
		t.Fatalf("rate-limited turn must not error: %v", err)
	}
	if !reply.RateLimited || reply.Text != RateLimitMessage {
		t.Fatalf("expected fixed quota message, got %+v", reply)
	}
	if len(responder.requests) != 2 {
		t.Fatalf("model must not run on rate-limited turns, saw %d calls", len(responder.requests))
	}
}

func TestHandleTurnActivitySuggestionCadence(t *testing.T) {
	o, responder, _ := newTestOrchestrator(t, 100)

	for turn := 1; turn <= 7; turn++ {
		if _, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: fmt.Sprintf("m%d", turn), TurnNumber: turn}); err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
		want := turn == 6
		if got := responder.lastRequest(t).SuggestActivity; got != want {
			t.Fatalf("turn %d: SuggestActivity=%v, want %v", turn, got, want)
		}
	}
}

func TestHandleTurnMissingProfileFails(t *testing.T) {
	contexts := store.NewMemoryContextStore()
	o := NewOrchestrator(ratelimit.NewDaily(10), NewAggregator(store.NewMemoryProfileStore(), contexts), &scriptedResponder{}, contexts, nil)

	_, err := o.HandleTurn(context.Background(), Request{UserID: "ghost", Message: "hi", TurnNumber: 1})
	if !errors.Is(err, ErrIdentity) {
		t.Fatalf("expected ErrIdentity, got %v", err)
	}
}

func TestHandleTurnModelFailure(t *testing.T) {
	o, responder, contexts := newTestOrchestrator(t, 10)
	responder.replyErr = errors.New("model down")

	_, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "hi", TurnNumber: 1})
	if !errors.Is(err, ErrModel) {
		t.Fatalf("expected ErrModel, got %v", err)
	}
	count, _ := contexts.CountMessages(context.Background(), "u1")
	if count != 0 {
		t.Fatalf("failed turns must not persist messages, got %d", count)
	}
}

func TestHandleTurnDegradedContextStillReplies(t *testing.T) {
	profiles := store.NewMemoryProfileStore(user.Profile{ID: "u1", Name: "지수"})
	contexts := store.NewMemoryContextStore()
	broken := &brokenContextStore{ContextStore: contexts, failHistory: true, failSummary: true, failSimilar: true}
	responder := &scriptedResponder{}
	o := NewOrchestrator(ratelimit.NewDaily(10), NewAggregator(profiles, broken), responder, contexts, nil)

	reply, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: "안녕", TurnNumber: 1})
	if err != nil {
		t.Fatalf("degraded turn must still reply: %v", err)
	}
	if !reply.Degraded {
		t.Fatalf("reply should be flagged degraded")
	}
	req := responder.lastRequest(t)
	if req.Context.Profile.Name != "지수" {
		t.Fatalf("profile must still personalize a degraded turn")
	}
	if req.Context.Summary != "" || len(req.Context.History) != 0 {
		t.Fatalf("degraded sources must arrive empty")
	}
}

func TestSummaryRefreshCadence(t *testing.T) {
	o, responder, contexts := newTestOrchestrator(t, 100)

	// 10 turns store 20 messages, crossing the cadence exactly once.
	for turn := 1; turn <= 10; turn++ {
		if _, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: fmt.Sprintf("m%d", turn), TurnNumber: turn}); err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
	}
	o.Wait()

	responder.mu.Lock()
	runs := responder.summaries
	responder.mu.Unlock()
	if runs != 1 {
		t.Fatalf("expected exactly one summarization run, got %d", runs)
	}
	summary, err := contexts.Summary(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary != "요약" {
		t.Fatalf("summary not overwritten, got %q", summary)
	}
}

func TestSummaryRefreshCadenceAfterGreeting(t *testing.T) {
	o, responder, contexts := newTestOrchestrator(t, 100)

	// The greeting stores a single AI message, so the running total stays
	// odd: 1, 3, 5, ... The cadence must still fire when the total crosses
	// the boundary (19 -> 21 on turn 10) rather than waiting for an exact
	// multiple that never arrives.
	if _, err := o.Greet(context.Background(), "u1"); err != nil {
		t.Fatalf("Greet: %v", err)
	}
	for turn := 1; turn <= 15; turn++ {
		if _, err := o.HandleTurn(context.Background(), Request{UserID: "u1", Message: fmt.Sprintf("m%d", turn), TurnNumber: turn}); err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
	}
	o.Wait()

	count, err := contexts.CountMessages(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 31 {
		t.Fatalf("expected 31 stored messages, got %d", count)
	}
	responder.mu.Lock()
	runs := responder.summaries
	responder.mu.Unlock()
	if runs != 1 {
		t.Fatalf("expected exactly one summarization run, got %d", runs)
	}
	summary, err := contexts.Summary(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary != "요약" {
		t.Fatalf("summary not refreshed, got %q", summary)
	}
}

func TestGreetSkipsRateCheckAndStoresAISide(t *testing.T) {
	o, _, contexts := newTestOrchestrator(t, 0)
	// Drain the quota entirely.
	limiter := ratelimit.NewDaily(1)
	day := ratelimit.DayKey(time.Now())
	limiter.TryConsume("u1", day)
	o.limiter = limiter

	reply, err := o.Greet(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Greet: %v", err)
	}
	if reply.RateLimited {
		t.Fatalf("greeting must bypass the rate limit")
	}
	if !strings.HasPrefix(reply.Text, "echo: ") {
		t.Fatalf("unexpected greeting %q", reply.Text)
	}

	history, err := contexts.RecentHistory(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(history) != 1 || history[0].Sender != chat.SenderAI {
		t.Fatalf("only the AI greeting should be stored, got %d messages", len(history))
	}
}
