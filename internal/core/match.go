package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/illarion/pwvault/internal/vault"
)

// MinIDPrefix is the shortest ID prefix accepted by MatchEntry
const MinIDPrefix = 4

var ErrAmbiguousID = errors.New("ambiguous entry id")

// MatchEntry finds an entry by full ID or by a unique ID prefix
func MatchEntry(entries []vault.Entry, ref string) (vault.Entry, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))

	if id, err := uuid.Parse(ref); err == nil {
		for _, e := range entries {
			if e.ID == id {
				return e, nil
			}
		}
		return vault.Entry{}, fmt.Errorf("%w: %s", vault.ErrNotFound, ref)
	}

	if len(ref) < MinIDPrefix {
		return vault.Entry{}, fmt.Errorf("%w: id prefix must have at least %d characters", vault.ErrNotFound, MinIDPrefix)
	}

	var found []vault.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.ID.String(), ref) {
			found = append(found, e)
		}
	}

	switch len(found) {
	case 0:
		return vault.Entry{}, fmt.Errorf("%w: %s", vault.ErrNotFound, ref)
	case 1:
		return found[0], nil
	default:
		return vault.Entry{}, fmt.Errorf("%w: %s matches %d entries", ErrAmbiguousID, ref, len(found))
	}
}

// ShortID returns the display form of an entry ID
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}
