package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the verdict record tables. Timestamps are stored as Unix
// nanoseconds so ordering and range filters stay exact.
const Schema = `
CREATE TABLE IF NOT EXISTS verdicts (
    id TEXT PRIMARY KEY,
    event_id TEXT,

    workspace_id TEXT NOT NULL,
    agent_id TEXT,
    event_type TEXT,
    source_ip TEXT,

    action TEXT NOT NULL,
    violations TEXT NOT NULL,
    rules_evaluated INTEGER NOT NULL,
    short_circuited INTEGER NOT NULL DEFAULT 0,
    duration_ns INTEGER NOT NULL,

    content_hash TEXT,
    content_size INTEGER NOT NULL DEFAULT 0,

    evaluated_at INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_recorded_at ON verdicts(recorded_at);
CREATE INDEX IF NOT EXISTS idx_verdicts_workspace ON verdicts(workspace_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_verdicts_action ON verdicts(action);
CREATE INDEX IF NOT EXISTS idx_verdicts_event_id ON verdicts(event_id);
`

// InsertSchemaVersion records the applied schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
