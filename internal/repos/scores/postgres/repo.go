package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/arcadegate/internal/repos/scores"
	"github.com/jackc/pgx/v5/pgconn"
)

var _ scores.Recorder = (*scoresRepo)(nil)

type scoresRepo struct{ db *sql.DB }

func New(db *sql.DB) *scoresRepo {
	return &scoresRepo{db: db}
}

func (r *scoresRepo) Record(ctx context.Context, s scores.Score) error {
	value := string(s.Value)
	if len(s.Value) == 0 {
		value = "null"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scores (session_id, value, continue_score, recorded_at)
		VALUES ($1, $2::jsonb, $3, $4)
	`, s.SessionID, value, s.ContinueScore, s.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return scores.ErrDuplicateScore
			}
		}

		return fmt.Errorf("insert score: %w", err)
	}

	return nil
}
