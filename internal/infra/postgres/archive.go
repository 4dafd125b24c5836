package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"live-quiz-service/internal/domain"
)

// Archive stores the summary of every closed room in room_archives.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

func (a *Archive) Archive(ctx context.Context, archive domain.RoomArchive) error {
	standings, err := json.Marshal(archive.Standings)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO room_archives
		   (code, quiz_id, presenter_id, final_status, reason, questions_shown, players, standings, created_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)`,
		archive.Code, archive.QuizID, archive.PresenterID, string(archive.FinalStatus), archive.Reason,
		archive.QuestionsShown, archive.Players, string(standings), archive.CreatedAt, archive.ClosedAt)
	if err != nil {
		return fmt.Errorf("archive room %s: %w", archive.Code, err)
	}
	return nil
}

// Recent returns the latest archived rooms for a quiz, newest first.
func (a *Archive) Recent(ctx context.Context, quizID string, limit int) ([]domain.RoomArchive, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT code, quiz_id, presenter_id, final_status, reason, questions_shown, players, standings, created_at, closed_at
		   FROM room_archives WHERE quiz_id=$1 ORDER BY closed_at DESC, id DESC LIMIT $2`,
		quizID, limit)
	if err != nil {
		return nil, fmt.Errorf("query archives: %w", err)
	}
	defer rows.Close()

	var out []domain.RoomArchive
	for rows.Next() {
		var (
			rec    domain.RoomArchive
			status string
			raw    []byte
		)
		if err := rows.Scan(&rec.Code, &rec.QuizID, &rec.PresenterID, &status, &rec.Reason,
			&rec.QuestionsShown, &rec.Players, &raw, &rec.CreatedAt, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		rec.FinalStatus = domain.RoomStatus(status)
		if err := json.Unmarshal(raw, &rec.Standings); err != nil {
			return nil, fmt.Errorf("unmarshal standings: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
