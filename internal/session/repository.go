package session

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository persists whole session snapshots.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Latest returns the most recently updated session or ErrSessionNotFound.
	Latest(ctx context.Context) (*Session, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// CostLedger records per-response spend. Only some backends keep one.
type CostLedger interface {
	LogCost(ctx context.Context, entry *CostEntry) error
	GetCostByDateRange(ctx context.Context, start, end time.Time) (*CostSummary, error)
	GetCostByProvider(ctx context.Context) ([]ProviderCostSummary, error)
	GetTotalCost(ctx context.Context) (*CostSummary, error)
	GetSessionCost(ctx context.Context, sessionID string) (*CostSummary, error)
}

type Summary struct {
	ID         string
	Prompt     string
	Models     []string
	Iterations int
	Rounds     int
	TotalCost  float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func SummaryOf(s *Session) Summary {
	return Summary{
		ID:         s.ID,
		Prompt:     s.PromptData.User,
		Models:     append([]string(nil), s.SelectedModels...),
		Iterations: len(s.Iterations),
		Rounds:     s.RoundCount(),
		TotalCost:  s.TotalCost(),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

type CostEntry struct {
	ResponseID   string
	SessionID    string
	Iteration    int
	Round        int
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Timestamp    time.Time
}

type CostSummary struct {
	TotalCost    float64
	InputTokens  int
	OutputTokens int
	EntryCount   int
}

type ProviderCostSummary struct {
	Provider   string
	TotalCost  float64
	EntryCount int
}

// CostEntries lists one entry per successful response in the session.
func CostEntries(s *Session) []*CostEntry {
	var entries []*CostEntry
	for _, it := range s.Iterations {
		for _, r := range it.Rounds {
			for _, resp := range r.Responses {
				if resp.Status != StatusSuccess {
					continue
				}
				entries = append(entries, &CostEntry{
					ResponseID:   resp.ID,
					SessionID:    s.ID,
					Iteration:    it.Number,
					Round:        r.Number,
					Provider:     resp.Provider,
					Model:        resp.ModelID,
					InputTokens:  resp.Metrics.InputTokens,
					OutputTokens: resp.Metrics.OutputTokens,
					Cost:         resp.Metrics.Cost,
					Timestamp:    r.Timestamp,
				})
			}
		}
	}
	return entries
}
