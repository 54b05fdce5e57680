// Package workshop runs the multi-model prompt workshop: rounds of parallel
// dispatch grouped into iterations, with winner selection, locking,
// checkpoints and synthesis over the resulting history.
package workshop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/metrics"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

// Store persists committed snapshots. *session.Manager satisfies it.
type Store interface {
	Save(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
}

type StartRequest struct {
	Models         []string
	System         string
	User           string
	ProjectContext string
}

// Engine owns the session aggregate. Each command works on a clone and swaps
// it in only after the store accepted it, so a failed command leaves the
// previous snapshot untouched. Commands are serialized; a command issued
// while another runs fails with ErrCommandInFlight.
type Engine struct {
	exec  *Executor
	store Store

	cmdMu sync.Mutex

	mu      sync.RWMutex
	current *session.Session

	newID func() string
	now   func() time.Time
}

func NewEngine(exec *Executor, store Store) *Engine {
	return &Engine{
		exec:  exec,
		store: store,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Snapshot returns a copy of the current session, or nil.
func (e *Engine) Snapshot() *session.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Clone()
}

// Resume adopts a previously persisted session after checking its invariants.
func (e *Engine) Resume(s *session.Session) error {
	if s == nil {
		return ErrNoSession
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if !e.cmdMu.TryLock() {
		return ErrCommandInFlight
	}
	defer e.cmdMu.Unlock()

	e.mu.Lock()
	e.current = s.Clone()
	e.mu.Unlock()
	return nil
}

func (e *Engine) StartWorkshop(ctx context.Context, req StartRequest) (*session.Session, error) {
	return e.run(ctx, "start", func(_ *session.Session) (*session.Session, error) {
		if strings.TrimSpace(req.User) == "" {
			return nil, ErrEmptyPrompt
		}
		if len(req.Models) < 2 {
			return nil, fmt.Errorf("%w: got %d", ErrNotEnoughModels, len(req.Models))
		}
		seen := make(map[string]bool, len(req.Models))
		for _, id := range req.Models {
			if seen[id] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, id)
			}
			seen[id] = true
			if _, ok := e.exec.Registry().ProviderFor(id); !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
			}
		}

		now := e.now()
		s := &session.Session{
			ID:             e.newID(),
			CreatedAt:      now,
			PromptData:     session.PromptData{System: req.System, User: req.User},
			ProjectContext: req.ProjectContext,
			SelectedModels: slices.Clone(req.Models),
			ModelColors:    make(map[string]string),
			Iterations: []session.Iteration{
				{Number: 1, Status: session.IterationActive},
			},
		}

		responses := e.exec.ExecuteRound(ctx, s.SelectedModels, Prompt{System: req.System, User: req.User}, s.ModelColors)
		it := s.ActiveIteration()
		it.Rounds = append(it.Rounds, session.Round{
			Number:    1,
			Timestamp: now,
			Type:      session.RoundInitial,
			Prompt:    req.User,
			Responses: responses,
		})
		metrics.ObserveRound(string(session.RoundInitial))
		return s, nil
	})
}

// ExecuteRound appends a discussion round to the active iteration. A locked
// iteration dispatches to its locked model only.
func (e *Engine) ExecuteRound(ctx context.Context, pivot string) (*session.Session, error) {
	return e.run(ctx, "round", func(cur *session.Session) (*session.Session, error) {
		if cur == nil {
			return nil, ErrNoSession
		}
		next := cur.Clone()
		if next.ActiveIteration() == nil {
			return nil, ErrNoActiveIteration
		}
		e.appendDiscussionRound(ctx, next, nil, pivot)
		return next, nil
	})
}

func (e *Engine) SelectWinner(ctx context.Context, responseID string) (*session.Session, error) {
	return e.run(ctx, "winner", func(cur *session.Session) (*session.Session, error) {
		if cur == nil {
			return nil, ErrNoSession
		}
		next := cur.Clone()
		patch, err := ApplyWinnerAction(next, ActionKeepBoth, responseID, "")
		if err != nil {
			return nil, err
		}
		patch.Apply(next)
		return next, nil
	})
}

// LockIn restricts the rest of the active iteration to modelID.
func (e *Engine) LockIn(ctx context.Context, modelID string) (*session.Session, error) {
	return e.run(ctx, "lock", func(cur *session.Session) (*session.Session, error) {
		if cur == nil {
			return nil, ErrNoSession
		}
		next := cur.Clone()
		it := next.ActiveIteration()
		if it == nil {
			return nil, ErrNoActiveIteration
		}
		if it.Locked() {
			return nil, fmt.Errorf("%w: locked to %s", ErrAlreadyLocked, it.LockedModelID)
		}
		if len(it.Rounds) == 0 {
			return nil, ErrNoRounds
		}
		if !slices.Contains(next.SelectedModels, modelID) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotSelected, modelID)
		}
		lockIteration(it, modelID, len(it.Rounds))
		return next, nil
	})
}

// MarkCheckpoint closes the active iteration, opens the next one and runs its
// first round seeded from the closed iteration's last round and pivot.
func (e *Engine) MarkCheckpoint(ctx context.Context, pivot string) (*session.Session, error) {
	return e.run(ctx, "checkpoint", func(cur *session.Session) (*session.Session, error) {
		if cur == nil {
			return nil, ErrNoSession
		}
		next := cur.Clone()
		closing := next.ActiveIteration()
		if closing == nil {
			return nil, ErrNoActiveIteration
		}
		if len(closing.Rounds) == 0 {
			return nil, ErrNoRounds
		}
		seed := closing.Rounds[len(closing.Rounds)-1]

		closing.Status = session.IterationCompleted
		next.Iterations = append(next.Iterations, session.Iteration{
			Number: len(next.Iterations) + 1,
			Status: session.IterationActive,
		})
		next.CurrentIterationIndex = len(next.Iterations) - 1

		logging.Log("workshop", "checkpoint", "session", next.ID, "iteration", len(next.Iterations))
		e.appendDiscussionRound(ctx, next, &seed, pivot)
		return next, nil
	})
}

// ReplaceModel re-issues one response with a different model using the
// round's original prompt, and substitutes the model for future rounds.
func (e *Engine) ReplaceModel(ctx context.Context, responseID, newModelID string) (*session.Session, error) {
	return e.run(ctx, "replace", func(cur *session.Session) (*session.Session, error) {
		if cur == nil {
			return nil, ErrNoSession
		}
		next := cur.Clone()
		if err := e.replaceResponse(ctx, next, responseID, newModelID); err != nil {
			return nil, err
		}
		return next, nil
	})
}

func (e *Engine) RecordFeedback(ctx context.Context, responseID string, relevance, tone int) (*session.Session, error) {
	return e.run(ctx, "feedback", func(cur *session.Session) (*session.Session, error) {
		if cur == nil {
			return nil, ErrNoSession
		}
		fb := session.Feedback{Relevance: relevance, Tone: tone}
		if !fb.Valid() {
			return nil, fmt.Errorf("%w: relevance=%d tone=%d", ErrInvalidFeedback, relevance, tone)
		}
		next := cur.Clone()
		ri, pi, ok := next.FindResponse(responseID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrResponseNotFound, responseID)
		}
		next.ActiveIteration().Rounds[ri].Responses[pi].Feedback = &fb
		return next, nil
	})
}

// ApplyWinnerAction marks winnerID and then keeps both models, locks the
// winner, or replaces the loser with replacement, as a single command.
func (e *Engine) ApplyWinnerAction(ctx context.Context, action WinnerAction, winnerID, loserID, replacement string) (*session.Session, error) {
	return e.run(ctx, "decide", func(cur *session.Session) (*session.Session, error) {
		if cur == nil {
			return nil, ErrNoSession
		}
		next := cur.Clone()
		patch, err := ApplyWinnerAction(next, action, winnerID, loserID)
		if err != nil {
			return nil, err
		}
		if patch.ReplaceResponseID != "" && replacement == "" {
			return nil, fmt.Errorf("%w: replace-loser needs a replacement model", ErrInvalidAction)
		}
		patch.Apply(next)
		if patch.ReplaceResponseID != "" {
			if err := e.replaceResponse(ctx, next, patch.ReplaceResponseID, replacement); err != nil {
				return nil, err
			}
		}
		return next, nil
	})
}

// Reset destroys the current session and removes it from the store.
func (e *Engine) Reset(ctx context.Context) error {
	if !e.cmdMu.TryLock() {
		metrics.ObserveCommand("reset", ErrCommandInFlight)
		return ErrCommandInFlight
	}
	defer e.cmdMu.Unlock()

	cur := e.Snapshot()
	if cur == nil {
		metrics.ObserveCommand("reset", ErrNoSession)
		return ErrNoSession
	}

	err := e.store.Delete(ctx, cur.ID)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		metrics.ObserveCommand("reset", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}

	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()
	metrics.ObserveCommand("reset", nil)
	logging.Log("workshop", "session reset", "session", cur.ID)
	return nil
}

func (e *Engine) run(ctx context.Context, name string, fn func(cur *session.Session) (*session.Session, error)) (*session.Session, error) {
	if !e.cmdMu.TryLock() {
		metrics.ObserveCommand(name, ErrCommandInFlight)
		return nil, ErrCommandInFlight
	}
	defer e.cmdMu.Unlock()

	e.mu.RLock()
	cur := e.current
	e.mu.RUnlock()

	next, err := fn(cur)
	if err == nil {
		err = e.commit(ctx, next)
	}
	metrics.ObserveCommand(name, err)
	if err != nil {
		logging.Log("workshop", "command failed", "command", name, "error", err)
		return nil, err
	}
	return next.Clone(), nil
}

func (e *Engine) commit(ctx context.Context, next *session.Session) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if err := e.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	e.mu.Lock()
	e.current = next
	e.mu.Unlock()
	return nil
}

// appendDiscussionRound runs a discussion round on the active iteration of s.
// seed replaces the iteration's own latest round as prompt context.
func (e *Engine) appendDiscussionRound(ctx context.Context, s *session.Session, seed *session.Round, pivot string) {
	it := s.ActiveIteration()

	modelIDs := s.SelectedModels
	if it.Locked() {
		modelIDs = []string{it.LockedModelID}
	}

	prev := seed
	if prev == nil {
		prev = it.LatestRound()
	}
	prompt := BuildDiscussionPrompt(s.PromptData.User, prev, pivot)

	responses := e.exec.ExecuteRound(ctx, modelIDs, Prompt{System: s.PromptData.System, User: prompt}, s.ModelColors)
	it.Rounds = append(it.Rounds, session.Round{
		Number:    len(it.Rounds) + 1,
		Timestamp: e.now(),
		Type:      session.RoundDiscussion,
		Pivot:     strings.TrimSpace(pivot),
		Prompt:    prompt,
		Responses: responses,
	})
	metrics.ObserveRound(string(session.RoundDiscussion))
}

func (e *Engine) replaceResponse(ctx context.Context, s *session.Session, responseID, newModelID string) error {
	ri, pi, ok := s.FindResponse(responseID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrResponseNotFound, responseID)
	}
	if _, ok := e.exec.Registry().ProviderFor(newModelID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, newModelID)
	}

	it := s.ActiveIteration()
	round := &it.Rounds[ri]
	if it.Locked() && round.Number > it.LockInRound {
		return fmt.Errorf("%w: round %d follows the lock on %s", ErrIterationLocked, round.Number, it.LockedModelID)
	}
	oldModelID := round.Responses[pi].ModelID
	if it.Locked() && oldModelID == it.LockedModelID {
		return fmt.Errorf("%w: %s is the locked model", ErrIterationLocked, oldModelID)
	}
	if round.HasModel(newModelID) {
		return fmt.Errorf("%w: %s already answered round %d", ErrDuplicateModel, newModelID, round.Number)
	}
	if slices.Contains(s.SelectedModels, newModelID) {
		return fmt.Errorf("%w: %s is already selected", ErrDuplicateModel, newModelID)
	}

	round.Responses[pi] = e.exec.Dispatch(ctx, newModelID, Prompt{System: s.PromptData.System, User: round.Prompt}, s.ModelColors)
	for i, id := range s.SelectedModels {
		if id == oldModelID {
			s.SelectedModels[i] = newModelID
		}
	}

	logging.Log("workshop", "model replaced", "round", round.Number, "old", oldModelID, "new", newModelID)
	return nil
}
