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
		Name:    "create documents and chunks with FTS5",
		SQL: `
			CREATE TABLE documents (
				id          TEXT PRIMARY KEY,
				source      TEXT NOT NULL,
				title       TEXT NOT NULL DEFAULT '',
				checksum    TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_documents_source ON documents (source);

			CREATE TABLE chunks (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				ordinal      INTEGER NOT NULL,
				content      TEXT NOT NULL
			);

			CREATE INDEX idx_chunks_document ON chunks (document_id, ordinal);

			CREATE VIRTUAL TABLE chunks_fts USING fts5(
				content,
				content='chunks',
				content_rowid='id'
			);

			CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
			END;

			CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
			END;

			CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content)
				VALUES ('delete', old.id, old.content);
				INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
			END;
		`,
	},
}
