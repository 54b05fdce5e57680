package workshop

import (
	"fmt"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

type WinnerAction string

const (
	ActionKeepBoth     WinnerAction = "keep-both"
	ActionLockWinner   WinnerAction = "lock-winner"
	ActionReplaceLoser WinnerAction = "replace-loser"
)

func (a WinnerAction) Valid() bool {
	switch a {
	case ActionKeepBoth, ActionLockWinner, ActionReplaceLoser:
		return true
	}
	return false
}

// Patch is the outcome of a winner decision. Apply marks the winner and the
// lock; a loser replacement needs a provider call and is left to the caller.
type Patch struct {
	Action            WinnerAction
	WinnerResponseID  string
	LockModelID       string
	LockInRound       int
	ReplaceResponseID string
}

func (p Patch) Apply(s *session.Session) {
	it := s.ActiveIteration()
	if it == nil {
		return
	}
	if r := it.LatestRound(); r != nil {
		markWinner(r, p.WinnerResponseID)
	}
	if p.LockModelID != "" {
		lockIteration(it, p.LockModelID, p.LockInRound)
	}
}

// ApplyWinnerAction validates a winner decision against s without mutating it.
func ApplyWinnerAction(s *session.Session, action WinnerAction, winnerID, loserID string) (Patch, error) {
	if !action.Valid() {
		return Patch{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if s == nil {
		return Patch{}, ErrNoSession
	}

	it := s.ActiveIteration()
	if it == nil {
		return Patch{}, ErrNoActiveIteration
	}
	winner, err := latestRoundResponse(s, winnerID)
	if err != nil {
		return Patch{}, err
	}
	if winner.Status != session.StatusSuccess {
		return Patch{}, fmt.Errorf("%w: %s", ErrWinnerIneligible, winnerID)
	}

	patch := Patch{Action: action, WinnerResponseID: winnerID}

	switch action {
	case ActionLockWinner:
		if it.Locked() {
			return Patch{}, fmt.Errorf("%w: locked to %s", ErrAlreadyLocked, it.LockedModelID)
		}
		patch.LockModelID = winner.ModelID
		patch.LockInRound = len(it.Rounds)
	case ActionReplaceLoser:
		if loserID == "" || loserID == winnerID {
			return Patch{}, fmt.Errorf("%w: replace-loser needs a losing response distinct from the winner", ErrInvalidAction)
		}
		if _, err := latestRoundResponse(s, loserID); err != nil {
			return Patch{}, err
		}
		patch.ReplaceResponseID = loserID
	}

	return patch, nil
}

// latestRoundResponse finds responseID and requires it to sit in the latest
// round of the active iteration.
func latestRoundResponse(s *session.Session, responseID string) (*session.Response, error) {
	ri, pi, ok := s.FindResponse(responseID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResponseNotFound, responseID)
	}
	it := s.ActiveIteration()
	if ri != len(it.Rounds)-1 {
		return nil, fmt.Errorf("%w: %s is in round %d of %d", ErrNotLatestRound, responseID, ri+1, len(it.Rounds))
	}
	return &it.Rounds[ri].Responses[pi], nil
}

// markWinner flags responseID and clears every other flag in the same round.
func markWinner(r *session.Round, responseID string) {
	for i := range r.Responses {
		r.Responses[i].IsWinner = r.Responses[i].ID == responseID
	}
}

func lockIteration(it *session.Iteration, modelID string, roundCount int) {
	it.LockedModelID = modelID
	it.LockInRound = roundCount
}
