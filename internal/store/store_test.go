package store

import (
	"context"
	"testing"
	"time"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/Peleke/colloquium/internal/logging"
	"github.com/Peleke/colloquium/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"source_materials", "exported_sessions", "exported_turns", "exported_reviews"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Source lookup tests ---

func TestSourceLookup_SeedAndGet(t *testing.T) {
	db := testDB(t)
	lookup := NewSQLiteSourceLookup(db)
	ctx := context.Background()

	require.NoError(t, lookup.SeedIfEmpty(ctx, source.Seed()))

	m, err := lookup.Get(ctx, "taberna")
	require.NoError(t, err)
	assert.Equal(t, "In taberna", m.Title)
	assert.Equal(t, []string{"tabernarius", "emptor"}, m.Roles)

	_, err = lookup.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestSourceLookup_SeedIsOneShot(t *testing.T) {
	db := testDB(t)
	lookup := NewSQLiteSourceLookup(db)
	ctx := context.Background()

	require.NoError(t, lookup.SeedIfEmpty(ctx, source.Seed()))
	require.NoError(t, lookup.Put(ctx, &source.Material{
		ID: "custom", Title: "Custom", TargetLanguage: "la", Setting: "x", Roles: []string{"a", "b"},
	}))

	// A second seed call must not clobber existing rows.
	require.NoError(t, lookup.SeedIfEmpty(ctx, source.Seed()))

	all, err := lookup.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(source.Seed())+1)
}

func TestSourceLookup_ListOrdered(t *testing.T) {
	db := testDB(t)
	lookup := NewSQLiteSourceLookup(db)
	ctx := context.Background()
	require.NoError(t, lookup.SeedIfEmpty(ctx, source.Seed()))

	all, err := lookup.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ludus", all[0].ID)
	assert.Equal(t, "taberna", all[1].ID)
	assert.Equal(t, "thermae", all[2].ID)
}

// --- Export tests ---

func exportedSession() *domain.Session {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	agg := domain.NewErrorAggregate()
	agg.ByCategory[domain.CategoryGrammar] = 1
	return &domain.Session{
		ID:              "sess-1",
		State:           domain.StateTerminal,
		SourceID:        "taberna",
		CounterpartRole: "tabernarius",
		LearnerRole:     "emptor",
		Level:           domain.LevelB1,
		TargetLanguage:  "la",
		CreatedAt:       now,
		UpdatedAt:       now.Add(5 * time.Minute),
		Aggregate:       agg,
		Turns: []domain.Turn{
			{ID: "t1", TurnNumber: 1, Speaker: domain.SpeakerCounterpart, Content: "Salve!", Timestamp: now},
			{
				ID: "t2", TurnNumber: 2, Speaker: domain.SpeakerLearner, Content: "Salve, quid vis?",
				Correction: &domain.Correction{HasErrors: true, Errors: []domain.ErrorRecord{
					{ErrorText: "vis", Correction: "velis", Explanation: "subjunctive", Category: domain.CategoryGrammar},
				}},
				Timestamp: now.Add(time.Minute),
			},
			{ID: "t3", TurnNumber: 3, Speaker: domain.SpeakerCounterpart, Content: "Panem vendo.", Timestamp: now.Add(time.Minute)},
		},
		Review: &domain.Review{
			Rating:         domain.RatingGood,
			Summary:        "Solid session.",
			ErrorBreakdown: map[domain.ErrorCategory]int{domain.CategoryGrammar: 1, domain.CategoryVocabulary: 0, domain.CategorySyntax: 0},
			Strengths:      []string{"greetings"},
			Improvements:   []string{"subjunctive"},
		},
	}
}

func TestExportRoundTrip(t *testing.T) {
	db := testDB(t)
	exports := NewExportStore(db)
	ctx := context.Background()

	sess := exportedSession()
	require.NoError(t, exports.Save(ctx, sess))

	loaded, err := exports.Load(ctx, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, domain.StateTerminal, loaded.State)
	assert.Equal(t, "emptor", loaded.LearnerRole)
	require.Len(t, loaded.Turns, 3)
	assert.Equal(t, 2, loaded.Turns[1].TurnNumber)
	require.NotNil(t, loaded.Turns[1].Correction)
	assert.True(t, loaded.Turns[1].Correction.HasErrors)
	assert.Equal(t, "velis", loaded.Turns[1].Correction.Errors[0].Correction)
	assert.Nil(t, loaded.Turns[0].Correction)

	require.NotNil(t, loaded.Review)
	assert.Equal(t, domain.RatingGood, loaded.Review.Rating)
	assert.Equal(t, 1, loaded.Review.ErrorBreakdown[domain.CategoryGrammar])
	assert.Equal(t, []string{"greetings"}, loaded.Review.Strengths)
}

func TestExportReplacesEarlierExport(t *testing.T) {
	db := testDB(t)
	exports := NewExportStore(db)
	ctx := context.Background()

	sess := exportedSession()
	require.NoError(t, exports.Save(ctx, sess))

	sess.Turns = append(sess.Turns, domain.Turn{
		ID: "t4", TurnNumber: 4, Speaker: domain.SpeakerLearner, Content: "Vale!", Timestamp: sess.UpdatedAt,
	})
	require.NoError(t, exports.Save(ctx, sess))

	loaded, err := exports.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Turns, 4)
}

func TestExportWithoutReview(t *testing.T) {
	db := testDB(t)
	exports := NewExportStore(db)
	ctx := context.Background()

	sess := exportedSession()
	sess.Review = nil
	sess.State = domain.StateActive
	require.NoError(t, exports.Save(ctx, sess))

	loaded, err := exports.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, loaded.Review)
}

func TestExportLoadUnknown(t *testing.T) {
	db := testDB(t)
	exports := NewExportStore(db)

	_, err := exports.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
