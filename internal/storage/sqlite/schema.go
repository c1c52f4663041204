// ABOUTME: SQLite database schema for chunk and conversation storage
// ABOUTME: Chunks carry BLOB embeddings and an FTS5 index kept in sync by triggers
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Chunks table (immutable once ingested)
CREATE TABLE IF NOT EXISTS chunks (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    source_document TEXT NOT NULL,
    page_number INTEGER NOT NULL,
    mode TEXT NOT NULL,
    text TEXT NOT NULL,
    token_count INTEGER DEFAULT 0,
    well_ids TEXT,
    embedding BLOB,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Well metadata per chunk, used by the well filter
CREATE TABLE IF NOT EXISTS chunk_wells (
    chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
    well_id TEXT NOT NULL COLLATE NOCASE,
    PRIMARY KEY (chunk_id, well_id)
);

-- Full-text index over chunk text (bm25 ranking)
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    text,
    content='chunks',
    content_rowid='seq',
    tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, text) VALUES (new.seq, new.text);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.seq, old.text);
END;

-- Conversation turn log (audit trail; live memory is per session in process)
CREATE TABLE IF NOT EXISTS turns (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    turn_index INTEGER NOT NULL,
    query TEXT NOT NULL,
    answer TEXT,
    mode TEXT,
    cited_wells TEXT,
    accepted INTEGER,
    confidence REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_chunks_mode ON chunks(mode);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(source_document);
CREATE INDEX IF NOT EXISTS idx_chunk_wells_well ON chunk_wells(well_id);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, turn_index);
`

// SchemaVersion is stamped into PRAGMA user_version
const SchemaVersion = 1
