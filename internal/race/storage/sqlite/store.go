// Package sqlite provides the SQLite-backed implementation of the race
// storage interfaces. Races are saved with an optimistic-concurrency version
// column so concurrent joins against the same race serialize at the write.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/coderace/coderace/internal/platform/storage/sqlitemigrate"
	"github.com/coderace/coderace/internal/race/domain"
	"github.com/coderace/coderace/internal/race/storage"
	"github.com/coderace/coderace/internal/race/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// toNullMillis maps optional domain times to sql.NullInt64 for nullable columns.
func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

// fromNullMillis maps nullable SQL timestamps back into optional time values.
func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// Store provides a SQLite-backed store implementing all storage interfaces.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetPlayer retrieves a player by id.
func (s *Store) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	if err := ctx.Err(); err != nil {
		return domain.Player{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, password_hash, current_race, best_time_ms, best_speed, games_won, total_games, created_at, updated_at
FROM players
WHERE id = ?
`, playerID)

	var p domain.Player
	var bestTimeMillis, createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.PasswordHash, &p.CurrentRace, &bestTimeMillis, &p.BestSpeed, &p.GamesWon, &p.TotalGames, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.Player{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("scan player: %w", err)
	}
	p.BestTime = time.Duration(bestTimeMillis) * time.Millisecond
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// PutPlayer inserts or replaces a player record.
func (s *Store) PutPlayer(ctx context.Context, p domain.Player) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("player id is required")
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO players (id, password_hash, current_race, best_time_ms, best_speed, games_won, total_games, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	password_hash = excluded.password_hash,
	current_race = excluded.current_race,
	best_time_ms = excluded.best_time_ms,
	best_speed = excluded.best_speed,
	games_won = excluded.games_won,
	total_games = excluded.total_games,
	updated_at = excluded.updated_at
`,
		p.ID,
		p.PasswordHash,
		p.CurrentRace,
		p.BestTime.Milliseconds(),
		p.BestSpeed,
		p.GamesWon,
		p.TotalGames,
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put player: %w", err)
	}
	return nil
}

// ClearCurrentRaces unconditionally clears every player's race pointer.
func (s *Store) ClearCurrentRaces(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE players SET current_race = '', updated_at = ? WHERE current_race != ''
`, toMillis(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("clear current races: %w", err)
	}
	cleared, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared players: %w", err)
	}
	return cleared, nil
}

const raceColumns = `id, max_players, num_players, players, joinable, complete, starting, started, was_reset,
	start_time, status, creator, winner, winner_time_ms, winner_speed, version, created_at, updated_at`

// GetRace retrieves a race by id.
func (s *Store) GetRace(ctx context.Context, raceID string) (domain.Race, error) {
	if err := ctx.Err(); err != nil {
		return domain.Race{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+raceColumns+` FROM races WHERE id = ?`, raceID)
	race, err := scanRace(row)
	if err == sql.ErrNoRows {
		return domain.Race{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Race{}, fmt.Errorf("scan race: %w", err)
	}
	return race, nil
}

// SaveRace persists a race. A race with version zero is inserted; any other
// version performs a conditional update that fails with ErrVersionConflict
// when the stored version moved since the caller's read. On success the
// race's version advances in place.
func (s *Store) SaveRace(ctx context.Context, r *domain.Race) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("race is required")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("race id is required")
	}

	playersJSON, err := json.Marshal(r.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}

	if r.Version == 0 {
		_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO races (`+raceColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			r.ID,
			r.MaxPlayers,
			r.NumPlayers,
			string(playersJSON),
			boolToInt(r.Joinable),
			boolToInt(r.Complete),
			boolToInt(r.Starting),
			boolToInt(r.Started),
			boolToInt(r.WasReset),
			toNullMillis(r.StartTime),
			r.Status.String(),
			r.Creator,
			r.Winner,
			r.WinnerTime.Milliseconds(),
			r.WinnerSpeed,
			1,
			toMillis(r.CreatedAt),
			toMillis(r.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert race: %w", err)
		}
		r.Version = 1
		return nil
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE races SET
	max_players = ?,
	num_players = ?,
	players = ?,
	joinable = ?,
	complete = ?,
	starting = ?,
	started = ?,
	was_reset = ?,
	start_time = ?,
	status = ?,
	creator = ?,
	winner = ?,
	winner_time_ms = ?,
	winner_speed = ?,
	version = version + 1,
	updated_at = ?
WHERE id = ? AND version = ?
`,
		r.MaxPlayers,
		r.NumPlayers,
		string(playersJSON),
		boolToInt(r.Joinable),
		boolToInt(r.Complete),
		boolToInt(r.Starting),
		boolToInt(r.Started),
		boolToInt(r.WasReset),
		toNullMillis(r.StartTime),
		r.Status.String(),
		r.Creator,
		r.Winner,
		r.WinnerTime.Milliseconds(),
		r.WinnerSpeed,
		toMillis(r.UpdatedAt),
		r.ID,
		r.Version,
	)
	if err != nil {
		return fmt.Errorf("update race: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("count updated races: %w", err)
	}
	if updated == 0 {
		var exists int
		probe := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM races WHERE id = ?`, r.ID)
		if probeErr := probe.Scan(&exists); probeErr == sql.ErrNoRows {
			return storage.ErrNotFound
		} else if probeErr != nil {
			return fmt.Errorf("probe race: %w", probeErr)
		}
		return storage.ErrVersionConflict
	}
	r.Version++
	return nil
}

// ListActive returns every race that has not completed.
func (s *Store) ListActive(ctx context.Context) ([]domain.Race, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+raceColumns+` FROM races WHERE complete = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active races: %w", err)
	}
	defer rows.Close()

	var races []domain.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		races = append(races, race)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate races: %w", err)
	}
	return races, nil
}

// ResetActive force-terminates every non-complete race.
func (s *Store) ResetActive(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE races SET
	complete = 1,
	num_players = 0,
	players = '[]',
	joinable = 0,
	was_reset = 1,
	version = version + 1,
	updated_at = ?
WHERE complete = 0
`, toMillis(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("reset active races: %w", err)
	}
	repaired, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count reset races: %w", err)
	}
	return repaired, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRace(row rowScanner) (domain.Race, error) {
	var race domain.Race
	var playersJSON, statusValue string
	var joinable, complete, starting, started, wasReset int
	var startTime sql.NullInt64
	var winnerTimeMillis, createdAt, updatedAt int64

	err := row.Scan(
		&race.ID,
		&race.MaxPlayers,
		&race.NumPlayers,
		&playersJSON,
		&joinable,
		&complete,
		&starting,
		&started,
		&wasReset,
		&startTime,
		&statusValue,
		&race.Creator,
		&race.Winner,
		&winnerTimeMillis,
		&race.WinnerSpeed,
		&race.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Race{}, err
	}

	if err := json.Unmarshal([]byte(playersJSON), &race.Players); err != nil {
		return domain.Race{}, fmt.Errorf("decode players: %w", err)
	}
	race.Joinable = joinable != 0
	race.Complete = complete != 0
	race.Starting = starting != 0
	race.Started = started != 0
	race.WasReset = wasReset != 0
	race.StartTime = fromNullMillis(startTime)
	race.SetStatus(domain.StatusFromString(statusValue))
	race.WinnerTime = time.Duration(winnerTimeMillis) * time.Millisecond
	race.CreatedAt = fromMillis(createdAt)
	race.UpdatedAt = fromMillis(updatedAt)
	return race, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
