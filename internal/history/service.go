package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/resolver"
)

// Attempt is one journaled resolution outcome.
type Attempt struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"requestId"`
	ExternalID  string    `json:"externalId"`
	MediaType   string    `json:"mediaType"`
	Title       string    `json:"title"`
	Year        int       `json:"year,omitempty"`
	Outcome     string    `json:"outcome"`
	Candidate   string    `json:"candidate,omitempty"`
	Confidence  int       `json:"confidence,omitempty"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

// Service journals attempts and answers history queries.
type Service struct {
	db     *DB
	logger zerolog.Logger
}

// NewService creates the history service.
func NewService(db *DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// RecordAttempt journals a terminal outcome. Journal failures are
// logged, never propagated: the resolution result stands regardless.
func (s *Service) RecordAttempt(ctx context.Context, req resolver.Request, result resolver.Result) {
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}

	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO attempts (request_id, external_id, media_type, title, year, outcome, candidate, confidence, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ExternalID, string(req.MediaType), req.Title, req.Year,
		string(result.Outcome), result.Candidate, result.Confidence, errText,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("requestId", req.ID).Msg("failed to journal attempt")
	}
}

// List returns the most recent attempts, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, request_id, external_id, media_type, title, year, outcome, candidate, confidence, error, attempted_at
		FROM attempts
		ORDER BY attempted_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]Attempt, 0, limit)
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ExternalID, &a.MediaType, &a.Title, &a.Year,
			&a.Outcome, &a.Candidate, &a.Confidence, &a.Error, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// LastOutcome returns the latest journaled outcome for an external id,
// or empty when none exists.
func (s *Service) LastOutcome(ctx context.Context, externalID string) (string, error) {
	var outcome string
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT outcome FROM attempts
		WHERE external_id = ?
		ORDER BY attempted_at DESC, id DESC
		LIMIT 1`, externalID).Scan(&outcome)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return outcome, nil
}
