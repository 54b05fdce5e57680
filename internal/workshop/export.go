package workshop

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dschwags/Prompt-Lab-sub000/internal/diff"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

// ExportMarkdown renders the session history as Markdown. It has no side effects.
func ExportMarkdown(s *session.Session) string {
	if s == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString("# Prompt Workshop\n\n")
	fmt.Fprintf(&b, "- Session: `%s`\n", s.ID)
	fmt.Fprintf(&b, "- Started: %s\n", s.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- Models: %s\n", strings.Join(s.SelectedModels, ", "))
	fmt.Fprintf(&b, "- Rounds: %d across %d iteration(s)\n", s.RoundCount(), len(s.Iterations))
	fmt.Fprintf(&b, "- Total cost: $%.4f\n\n", s.TotalCost())

	if sys := strings.TrimSpace(s.PromptData.System); sys != "" {
		b.WriteString("## System Prompt\n\n")
		writeQuoted(&b, sys)
	}
	b.WriteString("## Prompt\n\n")
	writeQuoted(&b, strings.TrimSpace(s.PromptData.User))

	for _, it := range s.Iterations {
		fmt.Fprintf(&b, "## Iteration %d (%s)\n\n", it.Number, it.Status)
		if it.Locked() {
			fmt.Fprintf(&b, "Locked to **%s** after round %d.\n\n", it.LockedModelID, it.LockInRound)
		}

		var prevWinner *session.Response
		for _, r := range it.Rounds {
			fmt.Fprintf(&b, "### Round %d (%s)\n\n", r.Number, r.Type)
			if r.Pivot != "" {
				fmt.Fprintf(&b, "_Guidance: %s_\n\n", r.Pivot)
			}

			var winner *session.Response
			for i := range r.Responses {
				resp := &r.Responses[i]
				writeResponseMarkdown(&b, resp)
				if resp.IsWinner {
					winner = resp
				}
			}

			if winner != nil && prevWinner != nil {
				st := diff.LineStats(prevWinner.Text, winner.Text)
				fmt.Fprintf(&b, "Winner changed +%d/-%d lines against the previous winner (%s).\n\n",
					st.Added, st.Removed, prevWinner.Model)
			}
			if winner != nil {
				prevWinner = winner
			}
		}
	}

	return b.String()
}

func writeResponseMarkdown(b *strings.Builder, r *session.Response) {
	b.WriteString("#### ")
	b.WriteString(r.Model)
	if r.IsWinner {
		b.WriteString(" (winner)")
	}
	b.WriteString("\n\n")

	if r.Status == session.StatusError {
		fmt.Fprintf(b, "**Error:** %s\n\n", r.Error)
		return
	}

	fmt.Fprintf(b, "`%s` · %.2fs · %s tokens (%s in / %s out) · $%.4f\n\n",
		r.ModelID,
		r.Metrics.Time,
		humanize.Comma(int64(r.Metrics.Tokens)),
		humanize.Comma(int64(r.Metrics.InputTokens)),
		humanize.Comma(int64(r.Metrics.OutputTokens)),
		r.Metrics.Cost)

	if r.Feedback != nil {
		fmt.Fprintf(b, "Feedback: relevance %s, tone %s\n\n",
			feedbackWord(r.Feedback.Relevance), feedbackWord(r.Feedback.Tone))
	}

	b.WriteString(strings.TrimSpace(r.Text))
	b.WriteString("\n\n")
}

func writeQuoted(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
