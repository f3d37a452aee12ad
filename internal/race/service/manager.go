// Package service coordinates race membership and lifecycle: the manager
// drives create/join/quit, the ticker advances countdowns, and the fleet
// reset repairs stale state after an unclean shutdown.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/coderace/coderace/internal/platform/errors"
	"github.com/coderace/coderace/internal/platform/id"
	"github.com/coderace/coderace/internal/race/domain"
	"github.com/coderace/coderace/internal/race/events"
	"github.com/coderace/coderace/internal/race/storage"
)

// Stores groups the persistence interfaces the manager depends on.
type Stores struct {
	Players storage.PlayerStore
	Races   storage.RaceStore
}

// Manager enforces the race membership protocol. It owns no locks: all
// serialization between concurrent joins is pushed to the race store's
// conditional save.
type Manager struct {
	stores      Stores
	publisher   events.Publisher
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewManager creates a Manager with default clock and id generation.
func NewManager(stores Stores, publisher events.Publisher) *Manager {
	return &Manager{
		stores:      stores,
		publisher:   publisher,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Create builds a race for the player and immediately joins them as its
// first member. A race is never created without its creator inside, so there
// is no creator-without-membership state.
//
// Option keys that name race fields are copied in; unknown keys are ignored.
func (m *Manager) Create(ctx context.Context, playerID string, opts map[string]any) (*domain.Race, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, apperrors.New(apperrors.CodeNotFound, "player id is required")
	}

	player, err := m.stores.Players.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "load player", err)
	}
	if player.InRace() {
		return nil, apperrors.WithMetadata(apperrors.CodeAlreadyInRace, "player is already in a race",
			map[string]string{"race_id": player.CurrentRace})
	}

	race, err := domain.NewRace(playerID, opts, m.clock, m.idGenerator)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "create race", err)
	}

	if err := m.join(ctx, &player, race, true); err != nil {
		return nil, err
	}
	return race, nil
}

// Join adds the player to an existing race. A conditional-save rejection is
// retried once with freshly loaded state; a second rejection surfaces as a
// concurrent-modification failure.
func (m *Manager) Join(ctx context.Context, playerID, raceID string) (*domain.Race, error) {
	player, err := m.stores.Players.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "load player", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		race, err := m.stores.Races.GetRace(ctx, raceID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, storage.ErrNotFound
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, "load race", err)
		}

		err = m.join(ctx, &player, &race, false)
		if err == nil {
			return &race, nil
		}
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		return nil, err
	}
	return nil, apperrors.New(apperrors.CodeConcurrentModification, "race changed concurrently, join abandoned")
}

// join runs the shared membership protocol. The race is persisted before the
// player, and events publish only after the corresponding save succeeds. The
// two saves are not transactional: a player-save failure after the race save
// leaves the race side authoritative until the next successful operation or
// a fleet reset repairs the divergence.
func (m *Manager) join(ctx context.Context, player *domain.Player, race *domain.Race, isNew bool) error {
	if !race.Joinable {
		return apperrors.New(apperrors.CodeNotJoinable, "race is not joinable")
	}
	if !isNew && race.HasPlayer(player.ID) {
		return apperrors.New(apperrors.CodeSelfPlay, "player is already a member of this race")
	}

	now := m.clock().UTC()
	race.AddPlayer(player.ID)
	race.UpdatedAt = now

	if err := m.stores.Races.SaveRace(ctx, race); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return storage.ErrVersionConflict
		}
		return apperrors.Wrap(apperrors.CodeRaceSaveFailed, "persist race", err)
	}
	if isNew {
		m.publish(events.TopicGamesNew, *race)
	} else {
		m.publish(events.TopicGamesUpdate, *race)
	}

	player.CurrentRace = race.ID
	player.UpdatedAt = now
	if err := m.stores.Players.PutPlayer(ctx, *player); err != nil {
		return apperrors.Wrap(apperrors.CodePlayerSaveFailed, "persist player after race save", err)
	}
	m.publish(events.TopicUsersUpdate, *player)
	return nil
}

// Quit removes the player from their current race. Quitting while not in a
// race is a successful no-op. A race emptied by the quit completes and is
// announced with games:remove instead of games:update.
func (m *Manager) Quit(ctx context.Context, playerID string) error {
	player, err := m.stores.Players.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return apperrors.Wrap(apperrors.CodeInternal, "load player", err)
	}
	if !player.InRace() {
		return nil
	}

	race, err := m.stores.Races.GetRace(ctx, player.CurrentRace)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The pointer is stale. This should not happen under correct
			// operation and is surfaced rather than silently cleared.
			return apperrors.WithMetadata(apperrors.CodeInternal, "current race no longer exists",
				map[string]string{"race_id": player.CurrentRace})
		}
		return apperrors.Wrap(apperrors.CodeInternal, "load race", err)
	}

	now := m.clock().UTC()
	race.RemovePlayer(player.ID)
	race.UpdatedAt = now

	if err := m.stores.Races.SaveRace(ctx, &race); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return storage.ErrVersionConflict
		}
		return apperrors.Wrap(apperrors.CodeRaceSaveFailed, "persist race", err)
	}
	if race.Complete {
		m.publish(events.TopicGamesRemove, race)
	} else {
		m.publish(events.TopicGamesUpdate, race)
	}

	player.CurrentRace = ""
	player.UpdatedAt = now
	if err := m.stores.Players.PutPlayer(ctx, player); err != nil {
		return apperrors.Wrap(apperrors.CodePlayerSaveFailed, "persist player after race save", err)
	}
	m.publish(events.TopicUsersUpdate, player)
	return nil
}

// CompleteWithWinner records the race outcome. Nothing in the lifecycle
// triggers it automatically; the scoring path invokes it when a racer
// finishes the exercise.
func (m *Manager) CompleteWithWinner(ctx context.Context, raceID, playerID string, elapsed time.Duration, speed float64) error {
	race, err := m.stores.Races.GetRace(ctx, raceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return apperrors.Wrap(apperrors.CodeInternal, "load race", err)
	}
	if !race.HasPlayer(playerID) {
		return apperrors.New(apperrors.CodeInternal, "winner is not a race member")
	}

	now := m.clock().UTC()
	race.Winner = playerID
	race.WinnerTime = elapsed
	race.WinnerSpeed = speed
	race.Complete = true
	race.Joinable = false
	race.UpdatedAt = now

	if err := m.stores.Races.SaveRace(ctx, &race); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return storage.ErrVersionConflict
		}
		return apperrors.Wrap(apperrors.CodeRaceSaveFailed, "persist race", err)
	}
	m.publish(events.TopicGamesUpdate, race)

	player, err := m.stores.Players.GetPlayer(ctx, playerID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePlayerSaveFailed, "load winner after race save", err)
	}
	player.RecordWin(elapsed, speed)
	player.UpdatedAt = now
	if err := m.stores.Players.PutPlayer(ctx, player); err != nil {
		return apperrors.Wrap(apperrors.CodePlayerSaveFailed, "persist winner after race save", err)
	}
	m.publish(events.TopicUsersUpdate, player)
	return nil
}

func (m *Manager) publish(topic events.Topic, payload any) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(topic, payload)
}
