package domain

import (
	"testing"
	"time"
)

func twoPlayerRace() *Race {
	race := &Race{MaxPlayers: 2, Joinable: true}
	race.SetStatus(StatusWaiting)
	race.AddPlayer("alice")
	race.AddPlayer("bob")
	return race
}

func TestTickArmsCountdownAtTwoPlayers(t *testing.T) {
	race := twoPlayerRace()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if !race.Tick(now, DefaultTickConfig()) {
		t.Fatal("expected tick to arm the countdown")
	}
	if !race.Starting || race.Started {
		t.Fatal("expected starting, not started")
	}
	if race.StartTime == nil || !race.StartTime.Equal(now.Add(15*time.Second)) {
		t.Fatalf("expected start time now+15s, got %v", race.StartTime)
	}
}

func TestTickDoesNotArmBelowTwoPlayers(t *testing.T) {
	race := &Race{MaxPlayers: 2, Joinable: true}
	race.SetStatus(StatusWaiting)
	race.AddPlayer("alice")

	if race.Tick(time.Now(), DefaultTickConfig()) {
		t.Fatal("expected no transition with a single player")
	}
	if race.Starting {
		t.Fatal("countdown must not arm")
	}
}

func TestTickDisarmsWhenPlayerLeaves(t *testing.T) {
	race := twoPlayerRace()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	race.Tick(now, DefaultTickConfig())

	race.RemovePlayer("bob")
	if !race.Tick(now.Add(time.Second), DefaultTickConfig()) {
		t.Fatal("expected tick to disarm the countdown")
	}
	if race.Starting || race.StartTime != nil {
		t.Fatal("expected countdown cleared")
	}
	if !race.Joinable {
		t.Fatal("expected joining reopened after disarm")
	}
}

// TestTickFullScenario follows the two-player walkthrough: arm at t0, no
// change at t0+11s for an already-full race, start at t0+16s.
func TestTickFullScenario(t *testing.T) {
	cfg := DefaultTickConfig()
	race := twoPlayerRace()
	if race.Joinable {
		t.Fatal("race at capacity must not be joinable")
	}

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !race.Tick(t0, cfg) {
		t.Fatal("expected countdown armed")
	}

	// 4 seconds left: the join window is already closed by capacity, the
	// countdown has not expired, so nothing changes.
	if race.Tick(t0.Add(11*time.Second), cfg) {
		t.Fatal("expected no mutation inside the countdown")
	}
	if race.Started {
		t.Fatal("race must not start early")
	}

	if !race.Tick(t0.Add(16*time.Second), cfg) {
		t.Fatal("expected race to start after the countdown expires")
	}
	if !race.Started {
		t.Fatal("expected started flag set")
	}
	if race.Status != StatusInGame || race.StatusText != "In game" {
		t.Fatalf("expected ingame status, got %v/%q", race.Status, race.StatusText)
	}
}

func TestTickClosesJoinWindowBeforeStart(t *testing.T) {
	cfg := DefaultTickConfig()
	race := &Race{MaxPlayers: 4, Joinable: true}
	race.SetStatus(StatusWaiting)
	race.AddPlayer("alice")
	race.AddPlayer("bob")

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	race.Tick(t0, cfg)
	if !race.Joinable {
		t.Fatal("race below capacity stays joinable while counting down")
	}

	// 4 seconds before start the lock window closes joining.
	if !race.Tick(t0.Add(11*time.Second), cfg) {
		t.Fatal("expected join window to close")
	}
	if race.Joinable {
		t.Fatal("expected joining closed inside the lock window")
	}
	if race.Started {
		t.Fatal("race must not start inside the lock window")
	}

	// Repeating the tick without time advancing is a no-op.
	if race.Tick(t0.Add(11*time.Second), cfg) {
		t.Fatal("expected tick to be idempotent within the window")
	}
}

func TestTickExpiredCountdownClosesAndStartsInOnePass(t *testing.T) {
	cfg := DefaultTickConfig()
	race := &Race{MaxPlayers: 4, Joinable: true}
	race.SetStatus(StatusWaiting)
	race.AddPlayer("alice")
	race.AddPlayer("bob")

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	race.Tick(t0, cfg)

	// No sweep ran during the lock window; one late tick must both close
	// joining and start the race.
	if !race.Tick(t0.Add(16*time.Second), cfg) {
		t.Fatal("expected late tick to mutate")
	}
	if race.Joinable || !race.Started {
		t.Fatalf("expected closed and started, got joinable=%v started=%v", race.Joinable, race.Started)
	}
}

func TestTickIgnoresCompletedAndStartedRaces(t *testing.T) {
	cfg := DefaultTickConfig()

	complete := &Race{Complete: true, NumPlayers: 3}
	if complete.Tick(time.Now(), cfg) {
		t.Fatal("completed race must not tick")
	}

	started := &Race{Started: true, Starting: true, NumPlayers: 2}
	if started.Tick(time.Now(), cfg) {
		t.Fatal("started race must not tick")
	}
}

func TestTickConfigOverrides(t *testing.T) {
	cfg := TickConfig{Countdown: 30 * time.Second, JoinLock: 10 * time.Second}
	race := twoPlayerRace()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	race.Tick(t0, cfg)
	if race.StartTime == nil || !race.StartTime.Equal(t0.Add(30*time.Second)) {
		t.Fatalf("expected custom countdown honored, got %v", race.StartTime)
	}
}

func TestPlayerRecordWin(t *testing.T) {
	player := &Player{}
	player.RecordWin(90*time.Second, 250)

	if player.GamesWon != 1 || player.TotalGames != 1 {
		t.Fatalf("expected win counted, got won=%d total=%d", player.GamesWon, player.TotalGames)
	}
	if player.BestTime != 90*time.Second || player.BestSpeed != 250 {
		t.Fatalf("expected bests recorded, got %v/%v", player.BestTime, player.BestSpeed)
	}

	// Worse results do not overwrite bests.
	player.RecordWin(120*time.Second, 200)
	if player.BestTime != 90*time.Second || player.BestSpeed != 250 {
		t.Fatalf("expected bests kept, got %v/%v", player.BestTime, player.BestSpeed)
	}

	// Better results do.
	player.RecordWin(60*time.Second, 300)
	if player.BestTime != 60*time.Second || player.BestSpeed != 300 {
		t.Fatalf("expected bests improved, got %v/%v", player.BestTime, player.BestSpeed)
	}
}
