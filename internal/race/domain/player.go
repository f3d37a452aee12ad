package domain

import "time"

// Player represents a registered racer.
//
// CurrentRace is the owning side of membership: it is set if and only if the
// player appears in that race's player list. The statistics fields are only
// touched by the winner path.
type Player struct {
	ID           string
	PasswordHash string // bcrypt hash, set at registration
	CurrentRace  string // empty when the player is not in a race

	BestTime   time.Duration // fastest completed race, zero until first win
	BestSpeed  float64       // characters per minute
	GamesWon   int
	TotalGames int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InRace reports whether the player currently belongs to a race.
func (p *Player) InRace() bool {
	return p.CurrentRace != ""
}

// RecordWin updates the player's statistics after winning a race.
// Best marks only improve: a lower time and a higher speed.
func (p *Player) RecordWin(elapsed time.Duration, speed float64) {
	p.GamesWon++
	p.TotalGames++
	if elapsed > 0 && (p.BestTime == 0 || elapsed < p.BestTime) {
		p.BestTime = elapsed
	}
	if speed > p.BestSpeed {
		p.BestSpeed = speed
	}
}
