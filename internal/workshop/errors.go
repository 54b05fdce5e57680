package workshop

import (
	"errors"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

// Invariant violations. Commands return these before touching the session.
var (
	ErrNoSession         = session.ErrNoSession
	ErrNoActiveIteration = errors.New("no active iteration")
	ErrNotEnoughModels   = errors.New("a workshop needs at least two models")
	ErrEmptyPrompt       = errors.New("user prompt cannot be empty")
	ErrDuplicateModel    = errors.New("model already selected")
	ErrUnknownModel      = errors.New("unknown model")
	ErrResponseNotFound  = errors.New("response not found in active iteration")
	ErrNotLatestRound    = errors.New("response is not in the latest round")
	ErrWinnerIneligible  = errors.New("failed responses cannot win")
	ErrNoRounds          = errors.New("iteration has no rounds")
	ErrAlreadyLocked     = errors.New("iteration is already locked")
	ErrModelNotSelected  = errors.New("model is not part of the workshop")
	ErrIterationLocked   = errors.New("round belongs to the locked part of the iteration")
	ErrInvalidFeedback   = errors.New("feedback values must be -1, 0 or 1")
	ErrInvalidAction     = errors.New("invalid winner action")
	ErrCommandInFlight   = errors.New("another command is in progress")
)

// Configuration and synthesis failures.
var (
	ErrMissingAPIKey   = errors.New("no API key configured")
	ErrUnknownTemplate = errors.New("unknown synthesis template")
	ErrMalformedReport = errors.New("synthesis output is not a valid report")
)
