package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/pairing-buds/companion/internal/model/chat"
)

// HistoryLimit is how many recent messages accompany each model call.
const HistoryLimit = 6

// SummaryMaxChars bounds the stored conversation summary.
const SummaryMaxChars = 200

// ReplyRequest carries everything the model needs for one conversational turn.
type ReplyRequest struct {
	Context         chat.TurnContext
	UserMessage     string
	SuggestActivity bool
}

// Service wraps the chat model behind prompt-assembly and summarization chains.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	summarize compose.Runnable[map[string]any, *schema.Message]
	clock     func() time.Time
}

// NewService compiles the reply and summarization chains over the given model.
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	replyTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	replyChain := compose.NewChain[map[string]any, *schema.Message]()
	replyChain.AppendChatTemplate(replyTemplate)
	replyChain.AppendChatModel(chatModel)

	reply, err := replyChain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	summaryTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	summaryChain := compose.NewChain[map[string]any, *schema.Message]()
	summaryChain.AppendChatTemplate(summaryTemplate)
	summaryChain.AppendChatModel(chatModel)

	summarize, err := summaryChain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     reply,
		summarize: summarize,
		clock:     time.Now,
	}, nil
}

// GenerateReply runs one conversational turn through the model.
func (s *Service) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(req.Context, req.SuggestActivity, s.clock()),
		"history": buildHistoryMessages(req.Context.History),
		"query":   req.UserMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run reply chain: %w", err)
	}

	text := strings.TrimSpace(response.Content)
	log.Printf("[ai] generated reply for user=%s, length=%d", req.Context.Profile.ID, len(text))
	return text, nil
}

// Summarize condenses a slice of messages into a short standing summary.
func (s *Service) Summarize(ctx context.Context, previousSummary string, messages []chat.Message) (string, error) {
	var transcript strings.Builder
	if prev := strings.TrimSpace(previousSummary); prev != "" {
		transcript.WriteString("기존 요약:\n")
		transcript.WriteString(prev)
		transcript.WriteString("\n\n")
	}
	transcript.WriteString("최근 대화:\n")
	for _, msg := range messages {
		fmt.Fprintf(&transcript, "[%s] %s\n", msg.Sender, msg.Content)
	}

	input := map[string]any{
		"system": fmt.Sprintf("아래 대화를 한국어 %d자 이내로 요약해. 사용자의 관심사, 감정 상태, 언급한 일정이나 계획을 우선 남겨. 요약문만 출력해.", SummaryMaxChars),
		"query":  transcript.String(),
	}

	response, err := s.summarize.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run summary chain: %w", err)
	}

	summary := strings.TrimSpace(response.Content)
	if utf8.RuneCountInString(summary) > SummaryMaxChars {
		summary = string([]rune(summary)[:SummaryMaxChars])
	}
	return summary, nil
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > HistoryLimit {
		startIdx = len(messages) - HistoryLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.SenderAI:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}
