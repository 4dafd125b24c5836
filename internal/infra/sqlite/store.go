package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"live-quiz-service/internal/domain"
)

//go:embed schema.sql
var schema string

// Store is a single-file catalog for deployments without Postgres: quiz documents plus
// the archive of closed rooms.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps SQLite free of "database is locked"
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.InitSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(strings.TrimSpace(schema)); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM quizzes WHERE id = ?`, quizID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz %s: %w", quizID, err)
	}
	if quiz.ID == "" {
		quiz.ID = quizID
	}
	return quiz, nil
}

func (s *Store) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		quiz.ID, string(data))
	return err
}

func (s *Store) Archive(ctx context.Context, archive domain.RoomArchive) error {
	standings, err := json.Marshal(archive.Standings)
	if err != nil {
		return fmt.Errorf("marshal standings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO room_archives
		   (code, quiz_id, presenter_id, final_status, reason, questions_shown, players, standings, created_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		archive.Code, archive.QuizID, archive.PresenterID, string(archive.FinalStatus), archive.Reason,
		archive.QuestionsShown, archive.Players, string(standings), archive.CreatedAt.UTC(), archive.ClosedAt.UTC())
	if err != nil {
		return fmt.Errorf("archive room %s: %w", archive.Code, err)
	}
	return nil
}

// Recent returns the latest archived rooms for a quiz, newest first.
func (s *Store) Recent(ctx context.Context, quizID string, limit int) ([]domain.RoomArchive, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, quiz_id, presenter_id, final_status, reason, questions_shown, players, standings, created_at, closed_at
		   FROM room_archives WHERE quiz_id = ? ORDER BY closed_at DESC, id DESC LIMIT ?`,
		quizID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomArchive
	for rows.Next() {
		var (
			rec    domain.RoomArchive
			status string
			raw    string
		)
		if err := rows.Scan(&rec.Code, &rec.QuizID, &rec.PresenterID, &status, &rec.Reason,
			&rec.QuestionsShown, &rec.Players, &raw, &rec.CreatedAt, &rec.ClosedAt); err != nil {
			return nil, err
		}
		rec.FinalStatus = domain.RoomStatus(status)
		if err := json.Unmarshal([]byte(raw), &rec.Standings); err != nil {
			return nil, fmt.Errorf("unmarshal standings: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
