package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/Peleke/colloquium/internal/source"
)

// SQLiteSourceLookup implements source.Lookup backed by SQLite.
type SQLiteSourceLookup struct {
	db *DB
}

// NewSQLiteSourceLookup creates a source lookup using the given database.
func NewSQLiteSourceLookup(db *DB) *SQLiteSourceLookup {
	return &SQLiteSourceLookup{db: db}
}

// SeedIfEmpty inserts the given materials when the table has no rows,
// so a fresh database starts with the built-in scenes.
func (s *SQLiteSourceLookup) SeedIfEmpty(ctx context.Context, materials []*source.Material) error {
	var count int
	if err := s.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM source_materials").Scan(&count); err != nil {
		return fmt.Errorf("counting source materials: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, m := range materials {
		if err := s.Put(ctx, m); err != nil {
			return err
		}
	}
	s.db.log.Info().Int("materials", len(materials)).Msg("seeded source materials")
	return nil
}

// Put inserts or replaces a material.
func (s *SQLiteSourceLookup) Put(ctx context.Context, m *source.Material) error {
	roles, err := json.Marshal(m.Roles)
	if err != nil {
		return fmt.Errorf("marshaling roles: %w", err)
	}
	_, err = s.db.sql.ExecContext(ctx,
		`INSERT OR REPLACE INTO source_materials (id, title, target_language, setting, roles)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.TargetLanguage, m.Setting, string(roles),
	)
	if err != nil {
		return fmt.Errorf("storing source material %s: %w", m.ID, err)
	}
	return nil
}

// Get returns the material with the given id.
func (s *SQLiteSourceLookup) Get(ctx context.Context, id string) (*source.Material, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, title, target_language, setting, roles FROM source_materials WHERE id = ?`, id,
	)
	m, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading source material %s: %w", id, err)
	}
	return m, nil
}

// List returns all materials ordered by id.
func (s *SQLiteSourceLookup) List(ctx context.Context) ([]*source.Material, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, title, target_language, setting, roles FROM source_materials ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing source materials: %w", err)
	}
	defer rows.Close()

	var out []*source.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source material: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (*source.Material, error) {
	var m source.Material
	var rolesJSON string
	if err := row.Scan(&m.ID, &m.Title, &m.TargetLanguage, &m.Setting, &rolesJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rolesJSON), &m.Roles); err != nil {
		return nil, fmt.Errorf("decoding roles for %s: %w", m.ID, err)
	}
	return &m, nil
}
