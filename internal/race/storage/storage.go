// Package storage defines the persistence boundary for race state.
package storage

import (
	"context"

	apperrors "github.com/coderace/coderace/internal/platform/errors"
	"github.com/coderace/coderace/internal/race/domain"
)

// ErrNotFound indicates a requested persistence record is missing. Callers
// use this to differentiate between legitimate "no such entity" states and
// transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrVersionConflict indicates a conditional save observed a newer stored
// version than the one the caller read. The race manager treats this as a
// concurrent modification and retries the whole attempt once.
var ErrVersionConflict = apperrors.New(apperrors.CodeConcurrentModification, "stored version changed since read")

// PlayerStore persists player identity, race membership pointers, and stats.
type PlayerStore interface {
	GetPlayer(ctx context.Context, id string) (domain.Player, error)
	PutPlayer(ctx context.Context, p domain.Player) error
	// ClearCurrentRaces unconditionally clears every player's current-race
	// pointer and returns the number of players updated.
	ClearCurrentRaces(ctx context.Context) (int64, error)
}

// RaceStore persists race lifecycle state with optimistic concurrency.
type RaceStore interface {
	GetRace(ctx context.Context, id string) (domain.Race, error)
	// SaveRace inserts the race when its version is zero and otherwise
	// performs a conditional update that fails with ErrVersionConflict when
	// the stored version moved since the caller's read. On success the
	// race's version is advanced in place.
	SaveRace(ctx context.Context, r *domain.Race) error
	// ListActive returns all races that have not completed.
	ListActive(ctx context.Context) ([]domain.Race, error)
	// ResetActive force-terminates every non-complete race: complete, empty
	// membership, not joinable, flagged as reset. Returns the number of
	// races repaired.
	ResetActive(ctx context.Context) (int64, error)
}
