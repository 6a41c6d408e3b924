package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/model/user"
)

func TestMemoryProfileStore(t *testing.T) {
	s := NewMemoryProfileStore(user.Profile{ID: "u1", Name: "준호"})

	p, err := s.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Name != "준호" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if _, err := s.GetProfile(context.Background(), "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestMemoryContextStoreRoundTrip(t *testing.T) {
	s := NewMemoryContextStore()
	ctx := context.Background()

	err := s.SaveTurn(ctx,
		chat.Message{UserID: "u1", Sender: chat.SenderUser, Content: "어제 공원에 갔어"},
		chat.Message{UserID: "u1", Sender: chat.SenderAI, Content: "공원 좋았겠다"},
	)
	if err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if err := s.SaveMessage(ctx, chat.Message{UserID: "u1", Sender: chat.SenderAI, Content: "잘 지냈어?"}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	count, err := s.CountMessages(ctx, "u1")
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d", count)
	}

	history, err := s.RecentHistory(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(history) != 2 || history[1].Content != "잘 지냈어?" {
		t.Fatalf("unexpected history %+v", history)
	}
	for _, m := range history {
		if m.ID == "" || m.CreatedAt.IsZero() {
			t.Fatalf("stored message missing id or timestamp: %+v", m)
		}
	}
}

func TestMemoryContextStoreSummaryOverwrite(t *testing.T) {
	s := NewMemoryContextStore()
	ctx := context.Background()

	if got, _ := s.Summary(ctx, "u1"); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
	if err := s.SaveSummary(ctx, "u1", "첫 요약"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	if err := s.SaveSummary(ctx, "u1", "두번째 요약"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	got, err := s.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got != "두번째 요약" {
		t.Fatalf("summary not overwritten, got %q", got)
	}
}

func TestMemoryContextStoreQuerySimilar(t *testing.T) {
	s := NewMemoryContextStore()
	ctx := context.Background()

	turns := []string{
		"오늘 공원에서 산책을 했어",
		"저녁에 라면을 끓여 먹었어",
		"산책하다가 고양이를 봤어",
	}
	for _, content := range turns {
		err := s.SaveTurn(ctx,
			chat.Message{UserID: "u1", Sender: chat.SenderUser, Content: content},
			chat.Message{UserID: "u1", Sender: chat.SenderAI, Content: "그랬구나"},
		)
		if err != nil {
			t.Fatalf("SaveTurn: %v", err)
		}
	}

	similar, err := s.QuerySimilar(ctx, "u1", "공원에서 또 산책을 할까", 2)
	if err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}
	if len(similar) == 0 {
		t.Fatalf("expected at least one similar message")
	}
	if similar[0] != "오늘 공원에서 산책을 했어" {
		t.Fatalf("best match should rank first, got %q", similar[0])
	}
	for _, text := range similar {
		if text == "그랬구나" {
			t.Fatalf("ai messages must not appear in similarity results")
		}
	}
}
