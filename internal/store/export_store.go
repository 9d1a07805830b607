package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Peleke/colloquium/internal/domain"
)

// ExportStore persists session snapshots on explicit request. The
// engine itself never writes here; export is the host's opt-in path to
// durable transcripts.
type ExportStore struct {
	db *DB
}

// NewExportStore creates an export store using the given database.
func NewExportStore(db *DB) *ExportStore {
	return &ExportStore{db: db}
}

// Save writes a full session snapshot: metadata, every turn with its
// correction, and the review if present. Re-exporting the same session
// replaces the earlier export.
func (s *ExportStore) Save(ctx context.Context, sess *domain.Session) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	// Replace any earlier export; turns and review cascade.
	if _, err := tx.ExecContext(ctx, `DELETE FROM exported_sessions WHERE id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clearing earlier export: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO exported_sessions
		 (id, source_id, counterpart_role, learner_role, level, target_language, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SourceID, sess.CounterpartRole, sess.LearnerRole,
		string(sess.Level), sess.TargetLanguage, string(sess.State),
		sess.CreatedAt.Format(time.RFC3339Nano), sess.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("exporting session %s: %w", sess.ID, err)
	}

	for _, turn := range sess.Turns {
		var correctionJSON sql.NullString
		if turn.Correction != nil {
			data, err := json.Marshal(turn.Correction)
			if err != nil {
				return fmt.Errorf("marshaling correction for turn %d: %w", turn.TurnNumber, err)
			}
			correctionJSON = sql.NullString{String: string(data), Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO exported_turns (session_id, turn_number, id, speaker, content, correction, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, turn.TurnNumber, turn.ID, string(turn.Speaker), turn.Content,
			correctionJSON, turn.Timestamp.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("exporting turn %d: %w", turn.TurnNumber, err)
		}
	}

	if sess.Review != nil {
		breakdown, err := json.Marshal(sess.Review.ErrorBreakdown)
		if err != nil {
			return fmt.Errorf("marshaling breakdown: %w", err)
		}
		strengths, err := json.Marshal(sess.Review.Strengths)
		if err != nil {
			return fmt.Errorf("marshaling strengths: %w", err)
		}
		improvements, err := json.Marshal(sess.Review.Improvements)
		if err != nil {
			return fmt.Errorf("marshaling improvements: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO exported_reviews (session_id, rating, summary, breakdown, strengths, improvements)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, string(sess.Review.Rating), sess.Review.Summary,
			string(breakdown), string(strengths), string(improvements),
		)
		if err != nil {
			return fmt.Errorf("exporting review: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}

	s.db.log.Info().
		Str("sessionId", sess.ID).
		Int("turns", len(sess.Turns)).
		Bool("review", sess.Review != nil).
		Msg("session exported")
	return nil
}

// Load reads an exported session back, mainly for verification and
// tooling. Returns domain.ErrSessionNotFound for unknown ids.
func (s *ExportStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	var level, state, createdAt, updatedAt string

	err := s.db.sql.QueryRowContext(ctx,
		`SELECT id, source_id, counterpart_role, learner_role, level, target_language, state, created_at, updated_at
		 FROM exported_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.SourceID, &sess.CounterpartRole, &sess.LearnerRole,
		&level, &sess.TargetLanguage, &state, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading exported session %s: %w", id, err)
	}
	sess.Level = domain.Level(level)
	sess.State = domain.SessionState(state)
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, turn_number, speaker, content, correction, timestamp
		 FROM exported_turns WHERE session_id = ? ORDER BY turn_number`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading exported turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn domain.Turn
		var speaker, ts string
		var correctionJSON sql.NullString
		if err := rows.Scan(&turn.ID, &turn.TurnNumber, &speaker, &turn.Content, &correctionJSON, &ts); err != nil {
			return nil, fmt.Errorf("scanning exported turn: %w", err)
		}
		turn.Speaker = domain.Speaker(speaker)
		turn.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if correctionJSON.Valid {
			var c domain.Correction
			if err := json.Unmarshal([]byte(correctionJSON.String), &c); err != nil {
				return nil, fmt.Errorf("decoding correction for turn %d: %w", turn.TurnNumber, err)
			}
			turn.Correction = &c
		}
		sess.Turns = append(sess.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var rating, summary, breakdown, strengths, improvements string
	err = s.db.sql.QueryRowContext(ctx,
		`SELECT rating, summary, breakdown, strengths, improvements
		 FROM exported_reviews WHERE session_id = ?`, id,
	).Scan(&rating, &summary, &breakdown, &strengths, &improvements)
	if err == nil {
		review := domain.Review{
			Rating:  domain.Rating(rating),
			Summary: summary,
		}
		if err := json.Unmarshal([]byte(breakdown), &review.ErrorBreakdown); err != nil {
			return nil, fmt.Errorf("decoding breakdown: %w", err)
		}
		if err := json.Unmarshal([]byte(strengths), &review.Strengths); err != nil {
			return nil, fmt.Errorf("decoding strengths: %w", err)
		}
		if err := json.Unmarshal([]byte(improvements), &review.Improvements); err != nil {
			return nil, fmt.Errorf("decoding improvements: %w", err)
		}
		sess.Review = &review
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("loading exported review: %w", err)
	}

	return &sess, nil
}
