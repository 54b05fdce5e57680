package workshop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

const DefaultResponseTruncate = 1200

type Template struct {
	ID          string
	Name        string
	Instruction string
}

var templates = map[string]Template{
	"consensus": {
		ID:          "consensus",
		Name:        "Consensus",
		Instruction: "Identify the points every model agrees on and the reasoning that survived each round. Build the final prompt on that common ground.",
	},
	"contrast": {
		ID:          "contrast",
		Name:        "Contrast",
		Instruction: "Compare how the models differ in approach, tone and structure. Explain which differences the human rewarded and fold the best traits into the final prompt.",
	},
	"debate": {
		ID:          "debate",
		Name:        "Debate",
		Instruction: "Treat each model as a participant in a debate. Surface the strongest argument on each side, judge which held up under the human's pivots, and write the final prompt that would settle the debate.",
	},
	"merge": {
		ID:          "merge",
		Name:        "Merge",
		Instruction: "Merge the strongest parts of every winning response into one coherent result. Keep what the human locked in and drop what they steered away from.",
	},
	"rapid": {
		ID:          "rapid",
		Name:        "Rapid",
		Instruction: "Be brief. Give at most three insights and a compact final prompt.",
	},
}

func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Template) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func LookupTemplate(id string) (Template, error) {
	t, ok := templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return t, nil
}

type Insight struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

type Report struct {
	Insights    []Insight       `json:"insights"`
	FinalPrompt string          `json:"finalPrompt"`
	Template    string          `json:"template"`
	Model       string          `json:"model"`
	Metrics     session.Metrics `json:"metrics"`
}

const synthesisSystem = "You analyse transcripts of multi-model prompt workshops. Respond with JSON only."

const reportFormat = `Return a single JSON object with this shape and nothing else:
{"insights": [{"title": "short title", "desc": "one or two sentences"}], "finalPrompt": "the improved prompt"}`

// Synthesizer runs one extra completion over a session's full history. It
// never mutates the session.
type Synthesizer struct {
	exec     *Executor
	truncate int
}

func NewSynthesizer(exec *Executor, truncate int) *Synthesizer {
	if truncate <= 0 {
		truncate = DefaultResponseTruncate
	}
	return &Synthesizer{exec: exec, truncate: truncate}
}

func (s *Synthesizer) Synthesize(ctx context.Context, sess *session.Session, templateID, modelID string) (*Report, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	tmpl, err := LookupTemplate(templateID)
	if err != nil {
		return nil, err
	}

	prompt := Prompt{
		System: synthesisSystem,
		User:   BuildTranscript(sess, s.truncate) + "\nTASK (" + tmpl.Name + "):\n" + tmpl.Instruction + "\n\n" + reportFormat + "\n",
	}

	logging.Log("workshop", "synthesizing", "session", sess.ID, "template", tmpl.ID, "model", modelID)

	c, m, err := s.exec.Complete(ctx, modelID, prompt)
	if err != nil {
		if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrUnknownModel) {
			return nil, err
		}
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}

	report, err := ParseReport(c.Text)
	if err != nil {
		logging.Log("workshop", "unparseable synthesis output", "model", modelID, "text", logging.Truncate(c.Text, 300))
		return nil, err
	}
	report.Template = tmpl.ID
	report.Model = modelID
	report.Metrics = m
	return report, nil
}

// BuildTranscript flattens the whole session into plain text. Each response
// is cut to maxRunes runes.
func BuildTranscript(s *session.Session, maxRunes int) string {
	var b strings.Builder

	b.WriteString("ORIGINAL PROMPT:\n")
	b.WriteString(strings.TrimSpace(s.PromptData.User))
	b.WriteString("\n")
	if sys := strings.TrimSpace(s.PromptData.System); sys != "" {
		b.WriteString("\nSYSTEM PROMPT:\n")
		b.WriteString(sys)
		b.WriteString("\n")
	}
	if pc := strings.TrimSpace(s.ProjectContext); pc != "" {
		b.WriteString("\nPROJECT CONTEXT:\n")
		b.WriteString(pc)
		b.WriteString("\n")
	}

	for _, it := range s.Iterations {
		fmt.Fprintf(&b, "\n=== ITERATION %d (%s)", it.Number, it.Status)
		if it.Locked() {
			fmt.Fprintf(&b, ", locked to %s after round %d", it.LockedModelID, it.LockInRound)
		}
		b.WriteString(" ===\n")

		for _, r := range it.Rounds {
			fmt.Fprintf(&b, "\n-- Round %d [%s]", r.Number, r.Type)
			if r.Pivot != "" {
				fmt.Fprintf(&b, " pivot: %q", r.Pivot)
			}
			b.WriteString(" --\n")

			for _, resp := range r.Responses {
				b.WriteString("* ")
				b.WriteString(resp.Model)
				if resp.IsWinner {
					b.WriteString(" [WINNER]")
				}
				if resp.Status == session.StatusError {
					fmt.Fprintf(&b, " [ERROR: %s]\n", resp.Error)
					continue
				}
				b.WriteString(":\n")
				b.WriteString(truncateRunes(strings.TrimSpace(resp.Text), maxRunes))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// ParseReport extracts the report object from model output. Code fences and
// prose around the object are ignored, including prose that contains braces.
func ParseReport(text string) (*Report, error) {
	if !strings.Contains(text, "{") {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedReport)
	}

	lastErr := errors.New("empty report")
	for offset := 0; offset < len(text); {
		i := strings.IndexByte(text[offset:], '{')
		if i < 0 {
			break
		}
		start := offset + i
		offset = start + 1

		var raw struct {
			Insights    []Insight `json:"insights"`
			FinalPrompt string    `json:"finalPrompt"`
		}
		if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(raw.FinalPrompt) == "" && len(raw.Insights) == 0 {
			continue
		}
		return &Report{Insights: raw.Insights, FinalPrompt: raw.FinalPrompt}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedReport, lastErr)
}
