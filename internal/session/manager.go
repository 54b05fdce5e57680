package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
)

var (
	ErrNoSession  = errors.New("no active session")
	ErrNoCostData = errors.New("storage backend does not keep a cost log")
)

// Manager tracks the current session on top of a Repository and feeds the
// cost log when the backend keeps one.
type Manager struct {
	repo    Repository
	ledger  CostLedger
	current *Session
	now     func() time.Time
}

func NewManager(repo Repository) *Manager {
	m := &Manager{repo: repo, now: time.Now}
	if ledger, ok := repo.(CostLedger); ok {
		m.ledger = ledger
	}
	return m
}

func (m *Manager) Current() *Session {
	return m.current
}

func (m *Manager) HasSession() bool {
	return m.current != nil
}

// Save persists s, logs its spend and makes it current.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.now()
	if err := m.repo.Save(ctx, s); err != nil {
		return err
	}

	if m.ledger != nil {
		for _, entry := range CostEntries(s) {
			if err := m.ledger.LogCost(ctx, entry); err != nil {
				// The snapshot is already durable; a missed ledger row only skews reports.
				logging.Log("storage", "cost log write failed", "response", entry.ResponseID, "error", err)
			}
		}
	}

	m.current = s
	return nil
}

// Resume loads the most recently updated session.
func (m *Manager) Resume(ctx context.Context) (*Session, error) {
	s, err := m.repo.Latest(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load latest session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}

func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	s, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}

func (m *Manager) ListSessions(ctx context.Context) ([]Summary, error) {
	return m.repo.List(ctx)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
	return nil
}

func (m *Manager) Close() error {
	return m.repo.Close()
}

func (m *Manager) GetCostByDateRange(ctx context.Context, start, end time.Time) (*CostSummary, error) {
	if m.ledger == nil {
		return nil, ErrNoCostData
	}
	return m.ledger.GetCostByDateRange(ctx, start, end)
}

func (m *Manager) GetCostByProvider(ctx context.Context) ([]ProviderCostSummary, error) {
	if m.ledger == nil {
		return nil, ErrNoCostData
	}
	return m.ledger.GetCostByProvider(ctx)
}

func (m *Manager) GetTotalCost(ctx context.Context) (*CostSummary, error) {
	if m.ledger == nil {
		return nil, ErrNoCostData
	}
	return m.ledger.GetTotalCost(ctx)
}

// GetSessionCost reports the ledger total for the current session, falling
// back to the snapshot's own metrics when there is no ledger.
func (m *Manager) GetSessionCost(ctx context.Context) (*CostSummary, error) {
	if m.current == nil {
		return &CostSummary{}, nil
	}
	if m.ledger == nil {
		summary := &CostSummary{}
		for _, e := range CostEntries(m.current) {
			summary.TotalCost += e.Cost
			summary.InputTokens += e.InputTokens
			summary.OutputTokens += e.OutputTokens
			summary.EntryCount++
		}
		return summary, nil
	}
	return m.ledger.GetSessionCost(ctx, m.current.ID)
}
