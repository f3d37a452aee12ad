package domain

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/coderace/coderace/internal/platform/id"
)

// Status describes the display state of a race.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusWaiting indicates the race is waiting for players.
	StatusWaiting
	// StatusInGame indicates the race has started.
	StatusInGame
)

// String returns the wire identifier for the status.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusInGame:
		return "ingame"
	default:
		return ""
	}
}

// Text returns the human-readable label paired with the status. Unrecognized
// values yield an empty label; callers must only pass recognized statuses.
func (s Status) Text() string {
	switch s {
	case StatusWaiting:
		return "Waiting"
	case StatusInGame:
		return "In game"
	default:
		return ""
	}
}

// StatusFromString reverses String for persisted status values.
func StatusFromString(value string) Status {
	switch value {
	case "waiting":
		return StatusWaiting
	case "ingame":
		return StatusInGame
	default:
		return StatusUnspecified
	}
}

// DefaultMaxPlayers caps race membership when creation options do not set one.
const DefaultMaxPlayers = 4

// Race represents one matchmaking instance with a bounded player set and a
// lifecycle: waiting, counting down, in game, complete.
type Race struct {
	ID         string
	MaxPlayers int
	NumPlayers int
	Players    []string // insertion order retained for display

	Joinable bool
	Complete bool
	Starting bool
	Started  bool
	WasReset bool

	StartTime *time.Time // nil until the countdown arms

	Status     Status
	StatusText string

	Creator     string
	Winner      string
	WinnerTime  time.Duration
	WinnerSpeed float64

	// Version is the optimistic-concurrency counter maintained by storage.
	// Zero means the race has never been persisted.
	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRace builds a race owned by creatorID. Options are applied first, then
// the lifecycle defaults are forced so a new race always starts waiting,
// joinable, and incomplete.
func NewRace(creatorID string, opts map[string]any, now func() time.Time, idGenerator func() (string, error)) (*Race, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	raceID, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate race id: %w", err)
	}

	createdAt := now().UTC()
	race := &Race{
		ID:         raceID,
		MaxPlayers: DefaultMaxPlayers,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	race.ApplyOptions(opts)

	race.SetStatus(StatusWaiting)
	race.Joinable = true
	race.Complete = false
	race.Creator = creatorID
	return race, nil
}

// ApplyOptions copies option values into matching race fields. A key is used
// only when a field with that name exists and the value is assignable; unknown
// keys are ignored. Key matching is case-insensitive so callers may use the
// wire spelling ("maxPlayers") or the Go spelling ("MaxPlayers").
func (r *Race) ApplyOptions(opts map[string]any) {
	if len(opts) == 0 {
		return
	}
	value := reflect.ValueOf(r).Elem()
	raceType := value.Type()
	for key, raw := range opts {
		for i := 0; i < raceType.NumField(); i++ {
			field := raceType.Field(i)
			if !field.IsExported() || !strings.EqualFold(field.Name, key) {
				continue
			}
			target := value.Field(i)
			supplied := reflect.ValueOf(raw)
			if !supplied.IsValid() {
				break
			}
			if supplied.Type().AssignableTo(target.Type()) {
				target.Set(supplied)
			} else if supplied.Type().ConvertibleTo(target.Type()) && isNumericKind(supplied.Kind()) && isNumericKind(target.Kind()) {
				target.Set(supplied.Convert(target.Type()))
			}
			break
		}
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// SetStatus is the only way to change the display status. It sets the status
// and its paired text atomically from the fixed enumeration.
func (r *Race) SetStatus(s Status) {
	r.Status = s
	r.StatusText = s.Text()
}

// HasPlayer reports whether playerID is a member of the race.
func (r *Race) HasPlayer(playerID string) bool {
	for _, member := range r.Players {
		if member == playerID {
			return true
		}
	}
	return false
}

// AddPlayer appends playerID to the membership list and re-checks the
// capacity invariant: joining closes the moment the race is full.
func (r *Race) AddPlayer(playerID string) {
	r.Players = append(r.Players, playerID)
	r.NumPlayers = len(r.Players)
	if r.MaxPlayers > 0 && r.NumPlayers == r.MaxPlayers {
		r.Joinable = false
	}
}

// RemovePlayer removes playerID from the membership list. The count never
// goes negative, and a race left with zero players completes and leaves
// matchmaking permanently.
func (r *Race) RemovePlayer(playerID string) {
	kept := r.Players[:0]
	for _, member := range r.Players {
		if member != playerID {
			kept = append(kept, member)
		}
	}
	r.Players = kept
	r.NumPlayers = len(r.Players)
	if r.NumPlayers == 0 {
		r.Complete = true
		r.Joinable = false
	}
}
