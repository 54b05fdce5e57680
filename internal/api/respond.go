package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Log("api", "response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

var (
	notFound = []error{
		workshop.ErrNoSession,
		workshop.ErrResponseNotFound,
		session.ErrSessionNotFound,
	}
	badRequest = []error{
		workshop.ErrNoActiveIteration,
		workshop.ErrNotEnoughModels,
		workshop.ErrEmptyPrompt,
		workshop.ErrDuplicateModel,
		workshop.ErrUnknownModel,
		workshop.ErrNotLatestRound,
		workshop.ErrWinnerIneligible,
		workshop.ErrNoRounds,
		workshop.ErrAlreadyLocked,
		workshop.ErrModelNotSelected,
		workshop.ErrIterationLocked,
		workshop.ErrInvalidFeedback,
		workshop.ErrInvalidAction,
		workshop.ErrAmbiguousResponse,
		workshop.ErrMissingAPIKey,
		workshop.ErrUnknownTemplate,
	}
)

// statusFor maps engine errors onto HTTP status codes. Anything unrecognised
// is a server-side failure, typically the session store.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workshop.ErrCommandInFlight):
		return http.StatusConflict
	case errors.Is(err, workshop.ErrMalformedReport):
		return http.StatusBadGateway
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Log("api", "command failed", "error", err)
	}
	writeError(w, status, err.Error())
}
