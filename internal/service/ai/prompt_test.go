package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/model/user"
)

func testProfile() user.Profile {
	birth := time.Date(1999, 3, 14, 0, 0, 0, 0, time.UTC)
	return user.Profile{
		ID:               "user-1",
		Name:             "준호",
		BirthDate:        birth,
		SeclusionScore:   32,
		OpennessScore:    3,
		SociabilityScore: 1,
		RoutineScore:     2,
		QuietnessScore:   4,
		ExpressionScore:  1,
	}
}

func TestBuildSystemPromptIncludesProfile(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	got := BuildSystemPrompt(chat.TurnContext{Profile: testProfile()}, false, now)

	if !strings.Contains(got, "준호") {
		t.Fatalf("prompt should include the user's name:\n%s", got)
	}
	if !strings.Contains(got, "27세") {
		t.Fatalf("prompt should include the computed age:\n%s", got)
	}
	if !strings.Contains(got, "은둔 성향 32점") {
		t.Fatalf("prompt should include the survey scores:\n%s", got)
	}
	if !strings.Contains(got, "반말") {
		t.Fatalf("prompt should carry the reply rules:\n%s", got)
	}
}

func TestBuildSystemPromptPlaceholdersWhenDegraded(t *testing.T) {
	got := BuildSystemPrompt(chat.TurnContext{Profile: testProfile()}, false, time.Now())

	if !strings.Contains(got, NoSummaryPlaceholder) {
		t.Fatalf("missing summary placeholder:\n%s", got)
	}
	if !strings.Contains(got, NoSimilarPlaceholder) {
		t.Fatalf("missing similar-context placeholder:\n%s", got)
	}
	if !strings.Contains(got, NoHistoryPlaceholder) {
		t.Fatalf("missing history placeholder:\n%s", got)
	}
}

func TestBuildSystemPromptUsesGatheredContext(t *testing.T) {
	tc := chat.TurnContext{
		Profile: testProfile(),
		Summary: "사용자는 최근 산책을 시작했다.",
		Similar: []string{"어제 공원에 다녀왔어"},
	}
	got := BuildSystemPrompt(tc, false, time.Now())

	if !strings.Contains(got, "산책을 시작했다") {
		t.Fatalf("summary not included:\n%s", got)
	}
	if !strings.Contains(got, "- 어제 공원에 다녀왔어") {
		t.Fatalf("similar context not included:\n%s", got)
	}
	if strings.Contains(got, NoSummaryPlaceholder) {
		t.Fatalf("placeholder should not appear when summary present")
	}
}

func TestBuildSystemPromptActivitySuggestion(t *testing.T) {
	tc := chat.TurnContext{Profile: testProfile()}

	plain := BuildSystemPrompt(tc, false, time.Now())
	if strings.Contains(plain, activityInstruction) {
		t.Fatalf("activity instruction should be absent on normal turns")
	}

	suggest := BuildSystemPrompt(tc, true, time.Now())
	if !strings.Contains(suggest, activityInstruction) {
		t.Fatalf("activity instruction missing on suggestion turn")
	}
}

func TestBuildHistoryMessagesLimitAndRoles(t *testing.T) {
	var msgs []chat.Message
	for i := 0; i < 10; i++ {
		sender := chat.SenderUser
		if i%2 == 1 {
			sender = chat.SenderAI
		}
		msgs = append(msgs, chat.Message{Sender: sender, Content: strings.Repeat("a", i+1)})
	}

	history := buildHistoryMessages(msgs)
	if len(history) != HistoryLimit {
		t.Fatalf("expected %d history messages, got %d", HistoryLimit, len(history))
	}
	// Last 6 of 10 start at index 4 (user), so roles alternate user-first.
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %s, %s", history[0].Role, history[1].Role)
	}
	if history[5].Content != strings.Repeat("a", 10) {
		t.Fatalf("history must end with the most recent message")
	}
}
