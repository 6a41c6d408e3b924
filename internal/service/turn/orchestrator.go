package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/ratelimit"
	"github.com/pairing-buds/companion/internal/service/ai"
	"github.com/pairing-buds/companion/internal/service/speech"
	"github.com/pairing-buds/companion/internal/store"
)

// ActivitySuggestionEvery marks the session turns that carry an activity
// suggestion (turn 6, 12, 18, ...).
const ActivitySuggestionEvery = 6

// SummaryCadence triggers background re-summarization once the user's stored
// message count crosses each multiple.
const SummaryCadence = 20

// SummaryWindow is how many recent messages feed each summarization run.
const SummaryWindow = 20

// RateLimitMessage is the fixed reply sent when the daily quota is spent.
const RateLimitMessage = "오늘은 이야기를 정말 많이 나눴다! 내일 다시 이야기하자."

// greetingQuery steers the model when a session opens.
const greetingQuery = "(사용자가 방금 접속했어. 먼저 반갑게 인사를 건네고 가볍게 안부를 물어봐.)"

// Responder generates model replies and summaries. *ai.Service satisfies it.
type Responder interface {
	GenerateReply(ctx context.Context, req ai.ReplyRequest) (string, error)
	Summarize(ctx context.Context, previousSummary string, messages []chat.Message) (string, error)
}

// Synthesizer renders reply text to audio. *speech.Pool satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) speech.Audio
}

// Request describes one user turn entering the orchestrator.
type Request struct {
	UserID  string
	Message string
	IsVoice bool
	// TurnNumber is the 1-indexed turn within the session, used for the
	// activity-suggestion cadence. Zero disables the cadence.
	TurnNumber int
}

// Reply is the outcome of one orchestrated turn.
type Reply struct {
	Text        string
	Audio       []byte
	AudioFormat string
	RateLimited bool
	Degraded    bool
}

// Orchestrator runs the turn pipeline: rate check, context gathering, prompt
// assembly, model invocation, persistence and synthesis.
type Orchestrator struct {
	limiter   *ratelimit.Daily
	agg       *Aggregator
	responder Responder
	contexts  store.ContextStore
	synth     Synthesizer
	clock     func() time.Time

	background sync.WaitGroup
}

// NewOrchestrator wires the turn pipeline. synth may be nil for text-only
// deployments.
func NewOrchestrator(limiter *ratelimit.Daily, agg *Aggregator, responder Responder, contexts store.ContextStore, synth Synthesizer) *Orchestrator {
	return &Orchestrator{
		limiter:   limiter,
		agg:       agg,
		responder: responder,
		contexts:  contexts,
		synth:     synth,
		clock:     time.Now,
	}
}

// HandleTurn runs one full conversational turn. Rate-limited turns get the
// fixed quota message rather than an error; only identity and model failures
// surface as errors.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (Reply, error) {
	if o.limiter != nil && !o.limiter.TryConsume(req.UserID, ratelimit.DayKey(o.clock())) {
		log.Printf("[turn] rate limit reached for user=%s", req.UserID)
		return Reply{Text: RateLimitMessage, RateLimited: true}, nil
	}

	tc, err := o.agg.Gather(ctx, req.UserID, req.Message)
	degraded := false
	switch {
	case errors.Is(err, ErrContextDegraded):
		degraded = true
	case err != nil:
		return Reply{}, err
	}

	suggest := req.TurnNumber > 0 && req.TurnNumber%ActivitySuggestionEvery == 0
	text, err := o.responder.GenerateReply(ctx, ai.ReplyRequest{
		Context:         tc,
		UserMessage:     req.Message,
		SuggestActivity: suggest,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrModel, err)
	}

	reply := Reply{Text: text, Degraded: degraded}
	if req.IsVoice && o.synth != nil {
		audio := o.synth.Synthesize(ctx, text)
		reply.Audio = audio.Data
		reply.AudioFormat = audio.Format
	}

	o.persistTurn(ctx, req, text)
	return reply, nil
}

// Greet opens a session with a model-generated greeting. It skips the rate
// check and stores only the AI side of the exchange.
func (o *Orchestrator) Greet(ctx context.Context, userID string) (Reply, error) {
	tc, err := o.agg.Gather(ctx, userID, "")
	degraded := false
	switch {
	case errors.Is(err, ErrContextDegraded):
		degraded = true
	case err != nil:
		return Reply{}, err
	}

	text, err := o.responder.GenerateReply(ctx, ai.ReplyRequest{
		Context:     tc,
		UserMessage: greetingQuery,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrModel, err)
	}

	if err := o.contexts.SaveMessage(ctx, chat.Message{
		UserID:    userID,
		Sender:    chat.SenderAI,
		Content:   text,
		CreatedAt: o.clock().UTC(),
	}); err != nil {
		log.Printf("[turn] %v: greeting for user=%s: %v", ErrPersistence, userID, err)
	} else {
		o.maybeRefreshSummary(ctx, userID, 1)
	}

	return Reply{Text: text, Degraded: degraded}, nil
}

// Wait blocks until background summarization work completes. Called during
// graceful shutdown.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

func (o *Orchestrator) persistTurn(ctx context.Context, req Request, replyText string) {
	now := o.clock().UTC()
	userMsg := chat.Message{
		UserID:    req.UserID,
		Sender:    chat.SenderUser,
		Content:   req.Message,
		IsVoice:   req.IsVoice,
		CreatedAt: now,
	}
	aiMsg := chat.Message{
		UserID:    req.UserID,
		Sender:    chat.SenderAI,
		Content:   replyText,
		CreatedAt: now,
	}

	if err := o.contexts.SaveTurn(ctx, userMsg, aiMsg); err != nil {
		log.Printf("[turn] %v: save turn for user=%s: %v", ErrPersistence, req.UserID, err)
		return
	}

	o.maybeRefreshSummary(ctx, req.UserID, 2)
}

// maybeRefreshSummary fires a background summarization when the messages just
// stored pushed the user's total across a cadence boundary. Comparing the
// boundary index before and after the save keeps the cadence working whatever
// the count's parity (greetings store a single message, turns store pairs).
func (o *Orchestrator) maybeRefreshSummary(ctx context.Context, userID string, stored int) {
	count, err := o.contexts.CountMessages(ctx, userID)
	if err != nil {
		log.Printf("[turn] count messages for user=%s: %v", userID, err)
		return
	}
	if count < SummaryCadence || count/SummaryCadence == (count-stored)/SummaryCadence {
		return
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		o.refreshSummary(userID)
	}()
}

// refreshSummary re-summarizes the user's recent history and overwrites the
// stored summary. Runs in the background; failures only log.
func (o *Orchestrator) refreshSummary(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	previous, err := o.contexts.Summary(ctx, userID)
	if err != nil {
		log.Printf("[turn] load summary for user=%s: %v", userID, err)
		previous = ""
	}
	window, err := o.contexts.RecentHistory(ctx, userID, SummaryWindow)
	if err != nil {
		log.Printf("[turn] load summary window for user=%s: %v", userID, err)
		return
	}
	if len(window) == 0 {
		return
	}

	summary, err := o.responder.Summarize(ctx, previous, window)
	if err != nil {
		log.Printf("[turn] summarize for user=%s: %v", userID, err)
		return
	}
	if err := o.contexts.SaveSummary(ctx, userID, summary); err != nil {
		log.Printf("[turn] %v: save summary for user=%s: %v", ErrPersistence, userID, err)
		return
	}
	log.Printf("[turn] refreshed summary for user=%s, length=%d", userID, len(summary))
}
