package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create source materials",
		SQL: `
			CREATE TABLE source_materials (
				id              TEXT PRIMARY KEY,
				title           TEXT NOT NULL,
				target_language TEXT NOT NULL,
				setting         TEXT NOT NULL,
				roles           TEXT NOT NULL,
				created_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "create exported sessions",
		SQL: `
			CREATE TABLE exported_sessions (
				id               TEXT PRIMARY KEY,
				source_id        TEXT NOT NULL,
				counterpart_role TEXT NOT NULL,
				learner_role     TEXT NOT NULL,
				level            TEXT NOT NULL,
				target_language  TEXT NOT NULL,
				state            TEXT NOT NULL,
				created_at       TEXT NOT NULL,
				updated_at       TEXT NOT NULL,
				exported_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE exported_turns (
				session_id  TEXT NOT NULL REFERENCES exported_sessions(id) ON DELETE CASCADE,
				turn_number INTEGER NOT NULL,
				id          TEXT NOT NULL,
				speaker     TEXT NOT NULL,
				content     TEXT NOT NULL,
				correction  TEXT,
				timestamp   TEXT NOT NULL,
				PRIMARY KEY (session_id, turn_number)
			);

			CREATE TABLE exported_reviews (
				session_id   TEXT PRIMARY KEY REFERENCES exported_sessions(id) ON DELETE CASCADE,
				rating       TEXT NOT NULL,
				summary      TEXT NOT NULL,
				breakdown    TEXT NOT NULL,
				strengths    TEXT NOT NULL,
				improvements TEXT NOT NULL
			);

			CREATE INDEX idx_exported_turns_session ON exported_turns (session_id, turn_number);
		`,
	},
}
