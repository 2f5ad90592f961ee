package db

// Schema returns the DDL that creates every table and index for dialect.
// Each statement is idempotent.
func Schema(dialect Dialect) []string {
	if dialect == SQLite {
		return []string{
			`CREATE TABLE IF NOT EXISTS evaluation_history (
    seq            INTEGER PRIMARY KEY AUTOINCREMENT,
    id             TEXT      NOT NULL UNIQUE,
    user_id        TEXT      NOT NULL,
    created_at     TIMESTAMP NOT NULL,
    decision_text  TEXT      NOT NULL,
    domain         TEXT      NOT NULL,
    verdict        TEXT      NOT NULL,
    pressure_score INTEGER   NOT NULL,
    overall_risk   INTEGER   NOT NULL,
    signals        BLOB
)`,
			`CREATE INDEX IF NOT EXISTS evaluation_history_user_created
    ON evaluation_history (user_id, created_at DESC)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS evaluation_history (
    seq            BIGSERIAL   PRIMARY KEY,
    id             UUID        NOT NULL UNIQUE,
    user_id        TEXT        NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    decision_text  TEXT        NOT NULL,
    domain         TEXT        NOT NULL,
    verdict        TEXT        NOT NULL,
    pressure_score INTEGER     NOT NULL CHECK (pressure_score BETWEEN 0 AND 100),
    overall_risk   INTEGER     NOT NULL CHECK (overall_risk BETWEEN 0 AND 100),
    signals        JSONB
)`,
		`CREATE INDEX IF NOT EXISTS evaluation_history_user_created
    ON evaluation_history (user_id, created_at DESC)`,
	}
}
