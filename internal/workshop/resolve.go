package workshop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

var ErrAmbiguousResponse = errors.New("response id prefix matches more than one response")

// ResolveResponseID expands ref, a full id or a unique id prefix, against the
// responses of the active iteration.
func ResolveResponseID(s *session.Session, ref string) (string, error) {
	if s == nil {
		return "", ErrNoSession
	}
	it := s.ActiveIteration()
	if it == nil {
		return "", ErrNoActiveIteration
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty id", ErrResponseNotFound)
	}

	var matches []string
	for _, r := range it.Rounds {
		for _, resp := range r.Responses {
			if resp.ID == ref {
				return resp.ID, nil
			}
			if strings.HasPrefix(resp.ID, ref) {
				matches = append(matches, resp.ID)
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrResponseNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s (%d matches)", ErrAmbiguousResponse, ref, len(matches))
	}
}
