package domain

import "time"

// Countdown and join-lock defaults. Both are overridable through TickConfig
// so deployments can tune the pre-start pacing.
const (
	DefaultCountdown = 15 * time.Second
	DefaultJoinLock  = 5 * time.Second
)

// TickConfig carries the lifecycle timing knobs.
type TickConfig struct {
	// Countdown is how far in the future StartTime is set when the
	// countdown arms.
	Countdown time.Duration
	// JoinLock is the window before start during which joining closes.
	JoinLock time.Duration
}

// DefaultTickConfig returns the standard 15s countdown with a 5s join lock.
func DefaultTickConfig() TickConfig {
	return TickConfig{Countdown: DefaultCountdown, JoinLock: DefaultJoinLock}
}

func (c TickConfig) normalized() TickConfig {
	if c.Countdown <= 0 {
		c.Countdown = DefaultCountdown
	}
	if c.JoinLock <= 0 {
		c.JoinLock = DefaultJoinLock
	}
	return c
}

// Tick advances the race lifecycle for the current wall-clock time and
// reports whether any field changed. It is a pure state transition: callers
// persist and publish only when it returns true. Repeated invocations inside
// the same time window are no-ops, so an overlapping sweep cannot compound
// mutations.
func (r *Race) Tick(now time.Time, cfg TickConfig) bool {
	cfg = cfg.normalized()

	if r.Complete || r.Started {
		return false
	}

	if !r.Starting {
		if r.NumPlayers > 1 {
			start := now.Add(cfg.Countdown)
			r.Starting = true
			r.StartTime = &start
			return true
		}
		return false
	}

	// A player left during the countdown: disarm and reopen joining.
	if r.NumPlayers < 2 {
		r.Starting = false
		r.StartTime = nil
		r.Joinable = true
		return true
	}

	// Both thresholds are evaluated in sequence so a race whose countdown
	// already expired closes joining and starts in a single pass.
	modified := false
	timeLeft := r.StartTime.Sub(now)
	if r.Joinable && timeLeft < cfg.JoinLock {
		r.Joinable = false
		modified = true
	}
	if !r.Joinable && timeLeft < 0 {
		r.Started = true
		r.SetStatus(StatusInGame)
		modified = true
	}
	return modified
}
