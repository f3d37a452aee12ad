package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coderace/coderace/internal/exercise"
	"github.com/coderace/coderace/internal/race/storage"
)

// PutExercise stores a prepared exercise. Exercises are immutable once
// written, so conflicts on the primary key are an error rather than an upsert.
func (s *Store) PutExercise(ctx context.Context, e exercise.Exercise) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO exercises (id, language, source, highlighted, plain, typeable_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Language, e.Source, e.Highlighted, e.Plain, e.TypeableCount, toMillis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert exercise: %w", err)
	}
	return nil
}

// GetExercise retrieves an exercise by ID.
func (s *Store) GetExercise(ctx context.Context, exerciseID string) (exercise.Exercise, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, language, source, highlighted, plain, typeable_count, created_at
		FROM exercises WHERE id = ?`, exerciseID)

	var e exercise.Exercise
	var createdAt int64
	err := row.Scan(&e.ID, &e.Language, &e.Source, &e.Highlighted, &e.Plain, &e.TypeableCount, &createdAt)
	if err == sql.ErrNoRows {
		return exercise.Exercise{}, storage.ErrNotFound
	}
	if err != nil {
		return exercise.Exercise{}, fmt.Errorf("scan exercise: %w", err)
	}
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}
