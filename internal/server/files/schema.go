package files

const schema = `
CREATE TABLE IF NOT EXISTS version_counter (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    value INTEGER NOT NULL
);
INSERT OR IGNORE INTO version_counter (id, value) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    file_type TEXT NOT NULL,
    parent TEXT NOT NULL,
    name_encrypted BLOB NOT NULL,
    name_hmac BLOB NOT NULL,
    metadata_version INTEGER NOT NULL,
    content_version INTEGER NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    access_key BLOB
);

CREATE INDEX IF NOT EXISTS idx_files_owner_version ON files(owner, metadata_version);
CREATE INDEX IF NOT EXISTS idx_files_parent ON files(parent);
`

// Schema is the DDL of the file index, applied through db.WithSchema
func Schema() string {
	return schema
}
