package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/model/user"
)

// Placeholder text injected when an optional context source is unavailable.
const (
	NoSummaryPlaceholder = "이전 대화 요약이 없습니다."
	NoSimilarPlaceholder = "관련된 과거 대화가 없습니다."
	NoHistoryPlaceholder = "최근 대화 기록이 없습니다."
)

// activityInstruction is appended on suggestion turns.
const activityInstruction = "이번 답변에서는 사용자의 성향에 맞는 가벼운 바깥 활동이나 기분 전환 활동을 자연스럽게 하나 제안해."

// replyRules are the fixed conversational rules for every reply.
const replyRules = `대화 규칙:
- 반말로 친근하게 대화해.
- 이모지는 사용하지 마.
- 답변은 최대 4문장으로 짧게 해.
- 사용자의 이전 대화 맥락을 기억하는 친구처럼 자연스럽게 이어가.
- 과한 조언이나 설교는 하지 말고 공감 위주로 말해.`

// BuildSystemPrompt assembles the per-turn system prompt from the user's
// profile and whatever context could be gathered. Missing context sections
// degrade to placeholder lines instead of being dropped.
func BuildSystemPrompt(tc chat.TurnContext, suggestActivity bool, now time.Time) string {
	var b strings.Builder

	b.WriteString("너는 사용자의 오랜 친구 같은 AI 동반자야.\n\n")
	b.WriteString(describeProfile(tc.Profile, now))
	b.WriteString("\n\n")
	b.WriteString(replyRules)

	b.WriteString("\n\n이전 대화 요약:\n")
	if s := strings.TrimSpace(tc.Summary); s != "" {
		b.WriteString(s)
	} else {
		b.WriteString(NoSummaryPlaceholder)
	}

	b.WriteString("\n\n관련된 과거 대화:\n")
	if len(tc.Similar) > 0 {
		for _, line := range tc.Similar {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	} else {
		b.WriteString(NoSimilarPlaceholder)
	}

	b.WriteString("\n\n최근 대화 상태:\n")
	b.WriteString(DescribeHistory(tc.History))

	if suggestActivity {
		b.WriteString("\n\n")
		b.WriteString(activityInstruction)
	}

	return b.String()
}

// describeProfile renders the personality survey scores so the model can
// match its tone to the user. Scores are out of 40, averages out of 4.
func describeProfile(p user.Profile, now time.Time) string {
	var b strings.Builder

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "사용자"
	}
	fmt.Fprintf(&b, "사용자 정보:\n- 이름: %s", name)
	if age := p.Age(now); age >= 0 {
		fmt.Fprintf(&b, "\n- 나이: %d세", age)
	}

	b.WriteString("\n- 성향 검사 점수 (은둔 성향은 40점, 나머지는 4점 만점):")
	fmt.Fprintf(&b, "\n  은둔 성향 %d점, 개방성 %d점, 사교성 %d점,", p.SeclusionScore, p.OpennessScore, p.SociabilityScore)
	fmt.Fprintf(&b, " 규칙성 %d점, 조용함 %d점, 표현력 %d점", p.RoutineScore, p.QuietnessScore, p.ExpressionScore)
	b.WriteString("\n- 점수가 높은 성향일수록 그 성향이 강한 사용자야. 말투와 제안을 거기에 맞춰.")

	return b.String()
}

// DescribeHistory renders recent messages as a placeholder line when empty;
// the actual history travels as structured chat messages.
func DescribeHistory(history []chat.Message) string {
	if len(history) == 0 {
		return NoHistoryPlaceholder
	}
	return fmt.Sprintf("최근 %d개의 대화가 이어지고 있습니다.", len(history))
}
