package workshop

import (
	"fmt"
	"strings"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

// BuildDiscussionPrompt folds the original prompt, the previous round's
// winner and other answers, recorded feedback and the optional pivot into the
// payload for the next round. prev may be nil.
func BuildDiscussionPrompt(original string, prev *session.Round, pivot string) string {
	var b strings.Builder

	b.WriteString("ORIGINAL PROMPT:\n")
	b.WriteString(strings.TrimSpace(original))
	b.WriteString("\n")

	if prev != nil {
		winner := prev.Winner()
		if winner != nil {
			fmt.Fprintf(&b, "\nWINNING RESPONSE FROM ROUND %d (%s):\n", prev.Number, winner.Model)
			writeResponse(&b, winner)
		}

		var others []*session.Response
		for i := range prev.Responses {
			r := &prev.Responses[i]
			if r.IsWinner || r.Status != session.StatusSuccess {
				continue
			}
			others = append(others, r)
		}
		if len(others) > 0 {
			if winner != nil {
				fmt.Fprintf(&b, "\nOTHER RESPONSES FROM ROUND %d:\n", prev.Number)
			} else {
				fmt.Fprintf(&b, "\nRESPONSES FROM ROUND %d:\n", prev.Number)
			}
			for _, r := range others {
				fmt.Fprintf(&b, "\n--- %s ---\n", r.Model)
				writeResponse(&b, r)
			}
		}
	}

	if pivot = strings.TrimSpace(pivot); pivot != "" {
		b.WriteString("\nHUMAN GUIDANCE:\n")
		b.WriteString(pivot)
		b.WriteString("\n")
	}

	b.WriteString("\nINSTRUCTIONS:\n")
	switch {
	case prev == nil:
		b.WriteString("Answer the original prompt.")
	case prev.Winner() != nil:
		b.WriteString("Improve on the winning response. Borrow anything useful from the other responses and respect the feedback.")
	default:
		b.WriteString("Review the responses above and write a better answer to the original prompt.")
	}
	if pivot != "" {
		b.WriteString(" Follow the human guidance over earlier direction.")
	}
	b.WriteString("\n")

	return b.String()
}

func writeResponse(b *strings.Builder, r *session.Response) {
	b.WriteString(strings.TrimSpace(r.Text))
	b.WriteString("\n")
	if r.Feedback != nil {
		fmt.Fprintf(b, "[Feedback: relevance %s, tone %s]\n",
			feedbackWord(r.Feedback.Relevance), feedbackWord(r.Feedback.Tone))
	}
}

func feedbackWord(v int) string {
	switch {
	case v > 0:
		return "good"
	case v < 0:
		return "poor"
	default:
		return "neutral"
	}
}
