// Package display renders workshop state for the terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
)

// colorHex maps palette tags to terminal colours.
var colorHex = map[string]string{
	"blue":    "#61AFEF",
	"emerald": "#34D399",
	"amber":   "#E5C07B",
	"rose":    "#E06C75",
	"violet":  "#C678DD",
	"cyan":    "#56B6C2",
	"orange":  "#D19A66",
	"lime":    "#98C379",
}

const (
	colorMuted  = "#636B78"
	colorError  = "#E06C75"
	colorAccent = "#C678DD"
)

type Displayer struct {
	out io.Writer
	r   *lipgloss.Renderer
	now func() time.Time

	// Width wraps response text; 0 disables wrapping.
	Width int
}

func New(out io.Writer) *Displayer {
	return &Displayer{
		out:   out,
		r:     lipgloss.NewRenderer(out),
		now:   time.Now,
		Width: 100,
	}
}

func (d *Displayer) style() lipgloss.Style {
	return d.r.NewStyle()
}

func (d *Displayer) modelStyle(tag string) lipgloss.Style {
	hex, ok := colorHex[tag]
	if !ok {
		hex = colorMuted
	}
	return d.style().Foreground(lipgloss.Color(hex)).Bold(true)
}

// Session prints the session header and its latest round.
func (d *Displayer) Session(s *session.Session) {
	if s == nil {
		fmt.Fprintln(d.out, "No active workshop. Start one with 'promptlab start'.")
		return
	}

	title := d.style().Foreground(lipgloss.Color(colorAccent)).Bold(true)
	muted := d.style().Foreground(lipgloss.Color(colorMuted))

	fmt.Fprintln(d.out, title.Render("Workshop "+shortID(s.ID)))
	fmt.Fprintln(d.out, muted.Render(fmt.Sprintf("started %s · %d iteration(s) · %d round(s) · $%.4f",
		humanize.RelTime(s.CreatedAt, d.now(), "ago", "from now"), len(s.Iterations), s.RoundCount(), s.TotalCost())))

	models := make([]string, 0, len(s.SelectedModels))
	for _, id := range s.SelectedModels {
		models = append(models, d.modelStyle(s.ModelColors[id]).Render(id))
	}
	fmt.Fprintf(d.out, "Models: %s\n", strings.Join(models, ", "))

	it := s.ActiveIteration()
	if it == nil {
		return
	}
	line := fmt.Sprintf("Iteration %d (%s)", it.Number, it.Status)
	if it.Locked() {
		line += fmt.Sprintf(" · locked to %s after round %d", it.LockedModelID, it.LockInRound)
	}
	fmt.Fprintln(d.out, line)

	if r := it.LatestRound(); r != nil {
		fmt.Fprintln(d.out)
		d.Round(r)
	}
}

// Round prints every response of a round with its id, metrics and text.
func (d *Displayer) Round(r *session.Round) {
	header := fmt.Sprintf("Round %d · %s", r.Number, r.Type)
	if r.Pivot != "" {
		header += fmt.Sprintf(" · pivot: %q", r.Pivot)
	}
	fmt.Fprintln(d.out, d.style().Bold(true).Render(header))

	muted := d.style().Foreground(lipgloss.Color(colorMuted))
	errStyle := d.style().Foreground(lipgloss.Color(colorError))
	body := d.style().PaddingLeft(2)
	if d.Width > 0 {
		body = body.Width(d.Width)
	}

	for _, resp := range r.Responses {
		name := d.modelStyle(resp.Color).Render(resp.Model)
		if resp.IsWinner {
			name += " ★"
		}
		fmt.Fprintf(d.out, "\n%s %s\n", name, muted.Render("["+resp.ID+"]"))

		if resp.Status == session.StatusError {
			fmt.Fprintln(d.out, body.Render(errStyle.Render("error: "+resp.Error)))
			continue
		}

		fmt.Fprintln(d.out, muted.Render(fmt.Sprintf("  %.2fs · %s tokens · $%.4f",
			resp.Metrics.Time, humanize.Comma(int64(resp.Metrics.Tokens)), resp.Metrics.Cost)))
		if resp.Feedback != nil {
			fmt.Fprintln(d.out, muted.Render(fmt.Sprintf("  feedback: relevance %+d, tone %+d",
				resp.Feedback.Relevance, resp.Feedback.Tone)))
		}
		fmt.Fprintln(d.out, body.Render(strings.TrimSpace(resp.Text)))
	}
}

func (d *Displayer) Report(rep *workshop.Report) {
	title := d.style().Foreground(lipgloss.Color(colorAccent)).Bold(true)
	muted := d.style().Foreground(lipgloss.Color(colorMuted))

	fmt.Fprintln(d.out, title.Render(fmt.Sprintf("Synthesis (%s via %s)", rep.Template, rep.Model)))
	for i, in := range rep.Insights {
		fmt.Fprintf(d.out, "%d. %s\n", i+1, d.style().Bold(true).Render(in.Title))
		if in.Desc != "" {
			fmt.Fprintf(d.out, "   %s\n", in.Desc)
		}
	}
	if rep.FinalPrompt != "" {
		fmt.Fprintln(d.out)
		fmt.Fprintln(d.out, d.style().Bold(true).Render("Final prompt:"))
		fmt.Fprintln(d.out, d.style().PaddingLeft(2).Render(rep.FinalPrompt))
	}
	fmt.Fprintln(d.out, muted.Render(fmt.Sprintf("%s tokens · $%.4f",
		humanize.Comma(int64(rep.Metrics.Tokens)), rep.Metrics.Cost)))
}

func (d *Displayer) Sessions(list []session.Summary) {
	if len(list) == 0 {
		fmt.Fprintln(d.out, "No saved workshops.")
		return
	}
	muted := d.style().Foreground(lipgloss.Color(colorMuted))
	for _, s := range list {
		fmt.Fprintf(d.out, "%s  %-40s %s\n",
			shortID(s.ID),
			truncate(s.Prompt, 40),
			muted.Render(fmt.Sprintf("%d it · %d rounds · $%.4f · %s",
				s.Iterations, s.Rounds, s.TotalCost, humanize.RelTime(s.UpdatedAt, d.now(), "ago", "from now"))))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
