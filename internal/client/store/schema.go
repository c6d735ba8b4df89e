package store

const schema = `
CREATE TABLE IF NOT EXISTS account (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    username TEXT NOT NULL,
    api_url TEXT NOT NULL,
    key BLOB NOT NULL
);

-- scope is one of base, local
CREATE TABLE IF NOT EXISTS file_metadata (
    scope TEXT NOT NULL,
    id TEXT NOT NULL,
    file_type TEXT NOT NULL,
    parent TEXT NOT NULL,
    name_encrypted BLOB NOT NULL,
    name_hmac BLOB NOT NULL,
    owner TEXT NOT NULL,
    metadata_version INTEGER NOT NULL DEFAULT 0,
    content_version INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    access_key BLOB,
    PRIMARY KEY (scope, id)
);

CREATE INDEX IF NOT EXISTS idx_file_metadata_parent ON file_metadata(parent);

-- local shadows base for the working view
CREATE VIEW IF NOT EXISTS current_metadata AS
    SELECT l.* FROM file_metadata l WHERE l.scope = 'local'
    UNION ALL
    SELECT b.* FROM file_metadata b WHERE b.scope = 'base'
        AND NOT EXISTS (SELECT 1 FROM file_metadata o WHERE o.scope = 'local' AND o.id = b.id);

-- scope is one of base, local, remote (fetched but not merged)
CREATE TABLE IF NOT EXISTS documents (
    scope TEXT NOT NULL,
    id TEXT NOT NULL,
    content_version INTEGER NOT NULL DEFAULT 0,
    content BLOB NOT NULL,
    PRIMARY KEY (scope, id)
);

CREATE TABLE IF NOT EXISTS local_changes (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    new INTEGER NOT NULL DEFAULT 0,
    renamed INTEGER NOT NULL DEFAULT 0,
    renamed_old_encrypted BLOB,
    renamed_old_hmac BLOB,
    moved INTEGER NOT NULL DEFAULT 0,
    moved_old TEXT NOT NULL DEFAULT '',
    edited INTEGER NOT NULL DEFAULT 0,
    edited_old BLOB,
    edited_access BLOB,
    deleted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS last_synced (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    version INTEGER NOT NULL
);
`
