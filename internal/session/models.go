package session

import (
	"errors"
	"fmt"
	"time"
)

type IterationStatus string

const (
	IterationActive    IterationStatus = "active"
	IterationCompleted IterationStatus = "completed"
)

type RoundType string

const (
	RoundInitial    RoundType = "initial"
	RoundDiscussion RoundType = "discussion"
)

type ResponseStatus string

const (
	StatusLoading ResponseStatus = "loading"
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
)

var ErrCorruptSession = errors.New("session violates invariants")

// Session is the root aggregate of a workshop. It is replaced wholesale on
// every committed command, never edited in place by readers.
type Session struct {
	ID                    string            `json:"id"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
	PromptData            PromptData        `json:"promptData"`
	ProjectContext        string            `json:"projectContext,omitempty"`
	SelectedModels        []string          `json:"selectedModels"`
	ModelColors           map[string]string `json:"modelColors"`
	Iterations            []Iteration       `json:"iterations"`
	CurrentIterationIndex int               `json:"currentIterationIndex"`
}

type PromptData struct {
	System string `json:"system"`
	User   string `json:"user"`
}

type Iteration struct {
	Number int             `json:"number"`
	Status IterationStatus `json:"status"`
	Rounds []Round         `json:"rounds"`
	// LockedModelID is empty until the iteration is locked.
	LockedModelID string `json:"lockedModelId,omitempty"`
	// LockInRound is the round count at lock time, 0 when unlocked.
	LockInRound int `json:"lockInRound,omitempty"`
}

type Round struct {
	Number    int       `json:"number"`
	Timestamp time.Time `json:"timestamp"`
	Type      RoundType `json:"type"`
	Pivot     string    `json:"pivot,omitempty"`
	// Prompt is the exact user payload dispatched for this round.
	Prompt    string     `json:"prompt"`
	Responses []Response `json:"responses"`
}

type Response struct {
	ID       string         `json:"id"`
	ModelID  string         `json:"modelId"`
	Model    string         `json:"model"`
	Provider string         `json:"provider,omitempty"`
	Text     string         `json:"text"`
	Metrics  Metrics        `json:"metrics"`
	Status   ResponseStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	IsWinner bool           `json:"isWinner,omitempty"`
	Feedback *Feedback      `json:"feedback,omitempty"`
	Color    string         `json:"color"`
}

type Metrics struct {
	// Time is wall-clock latency in seconds.
	Time         float64 `json:"time"`
	Cost         float64 `json:"cost"`
	Tokens       int     `json:"tokens"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
}

// Feedback values are -1, 0 or 1.
type Feedback struct {
	Relevance int `json:"relevance"`
	Tone      int `json:"tone"`
}

func (f Feedback) Valid() bool {
	return f.Relevance >= -1 && f.Relevance <= 1 && f.Tone >= -1 && f.Tone <= 1
}

// ActiveIteration returns the iteration at CurrentIterationIndex.
func (s *Session) ActiveIteration() *Iteration {
	if s.CurrentIterationIndex < 0 || s.CurrentIterationIndex >= len(s.Iterations) {
		return nil
	}
	return &s.Iterations[s.CurrentIterationIndex]
}

// LatestRound returns the last round of the active iteration.
func (s *Session) LatestRound() *Round {
	it := s.ActiveIteration()
	if it == nil {
		return nil
	}
	return it.LatestRound()
}

func (it *Iteration) LatestRound() *Round {
	if len(it.Rounds) == 0 {
		return nil
	}
	return &it.Rounds[len(it.Rounds)-1]
}

func (it *Iteration) Locked() bool {
	return it.LockedModelID != ""
}

// FindResponse locates a response in the active iteration and returns the
// owning round index and the response index.
func (s *Session) FindResponse(responseID string) (roundIdx, respIdx int, ok bool) {
	it := s.ActiveIteration()
	if it == nil {
		return 0, 0, false
	}
	for ri := range it.Rounds {
		for pi := range it.Rounds[ri].Responses {
			if it.Rounds[ri].Responses[pi].ID == responseID {
				return ri, pi, true
			}
		}
	}
	return 0, 0, false
}

func (r *Round) Winner() *Response {
	for i := range r.Responses {
		if r.Responses[i].IsWinner {
			return &r.Responses[i]
		}
	}
	return nil
}

func (r *Round) HasModel(modelID string) bool {
	for _, resp := range r.Responses {
		if resp.ModelID == modelID {
			return true
		}
	}
	return false
}

// Cost sums response costs in the round.
func (r *Round) Cost() float64 {
	var total float64
	for _, resp := range r.Responses {
		total += resp.Metrics.Cost
	}
	return total
}

// TotalCost sums every response cost in the session.
func (s *Session) TotalCost() float64 {
	var total float64
	for _, it := range s.Iterations {
		for _, r := range it.Rounds {
			total += r.Cost()
		}
	}
	return total
}

func (s *Session) RoundCount() int {
	n := 0
	for _, it := range s.Iterations {
		n += len(it.Rounds)
	}
	return n
}

// Clone returns a deep copy. Commands mutate the clone and swap it in only
// after it has been persisted.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.SelectedModels = append([]string(nil), s.SelectedModels...)
	out.ModelColors = make(map[string]string, len(s.ModelColors))
	for k, v := range s.ModelColors {
		out.ModelColors[k] = v
	}
	out.Iterations = make([]Iteration, len(s.Iterations))
	for i := range s.Iterations {
		out.Iterations[i] = s.Iterations[i].clone()
	}
	return &out
}

func (it Iteration) clone() Iteration {
	out := it
	out.Rounds = make([]Round, len(it.Rounds))
	for i := range it.Rounds {
		out.Rounds[i] = it.Rounds[i].clone()
	}
	return out
}

func (r Round) clone() Round {
	out := r
	out.Responses = make([]Response, len(r.Responses))
	for i, resp := range r.Responses {
		if resp.Feedback != nil {
			fb := *resp.Feedback
			resp.Feedback = &fb
		}
		out.Responses[i] = resp
	}
	return out
}

// Validate checks the structural invariants of a session.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrCorruptSession)
	}
	if len(s.Iterations) == 0 {
		return fmt.Errorf("%w: no iterations", ErrCorruptSession)
	}
	if s.CurrentIterationIndex != len(s.Iterations)-1 {
		return fmt.Errorf("%w: current iteration %d is not the last of %d",
			ErrCorruptSession, s.CurrentIterationIndex, len(s.Iterations))
	}

	for i, it := range s.Iterations {
		if it.Number != i+1 {
			return fmt.Errorf("%w: iteration %d numbered %d", ErrCorruptSession, i+1, it.Number)
		}
		wantStatus := IterationCompleted
		if i == s.CurrentIterationIndex {
			wantStatus = IterationActive
		}
		if it.Status != wantStatus {
			return fmt.Errorf("%w: iteration %d status %q, want %q", ErrCorruptSession, it.Number, it.Status, wantStatus)
		}
		if (it.LockedModelID == "") != (it.LockInRound == 0) {
			return fmt.Errorf("%w: iteration %d has a partial lock", ErrCorruptSession, it.Number)
		}

		for j, r := range it.Rounds {
			if r.Number != j+1 {
				return fmt.Errorf("%w: iteration %d round %d numbered %d", ErrCorruptSession, it.Number, j+1, r.Number)
			}
			winners := 0
			seen := make(map[string]bool, len(r.Responses))
			for _, resp := range r.Responses {
				if resp.IsWinner {
					winners++
				}
				if seen[resp.ModelID] {
					return fmt.Errorf("%w: iteration %d round %d repeats model %s", ErrCorruptSession, it.Number, r.Number, resp.ModelID)
				}
				seen[resp.ModelID] = true
			}
			if winners > 1 {
				return fmt.Errorf("%w: iteration %d round %d has %d winners", ErrCorruptSession, it.Number, r.Number, winners)
			}
			if it.Locked() && r.Number > it.LockInRound {
				if len(r.Responses) != 1 || r.Responses[0].ModelID != it.LockedModelID {
					return fmt.Errorf("%w: iteration %d round %d does not target locked model %s",
						ErrCorruptSession, it.Number, r.Number, it.LockedModelID)
				}
			}
		}
	}
	return nil
}
