package service

import (
	"context"
	"fmt"
)

// ResetReport summarizes a fleet reset.
type ResetReport struct {
	PlayersCleared int64
	RacesReset     int64
}

// FleetReset repairs state left inconsistent by an unclean shutdown: every
// player's current-race pointer is cleared and every non-complete race is
// force-terminated. It publishes no events; callers run it before any
// listener or lifecycle driver is active.
func FleetReset(ctx context.Context, stores Stores) (ResetReport, error) {
	var report ResetReport

	playersCleared, err := stores.Players.ClearCurrentRaces(ctx)
	if err != nil {
		return report, fmt.Errorf("clear player race pointers: %w", err)
	}
	report.PlayersCleared = playersCleared

	racesReset, err := stores.Races.ResetActive(ctx)
	if err != nil {
		return report, fmt.Errorf("reset active races: %w", err)
	}
	report.RacesReset = racesReset

	return report, nil
}
