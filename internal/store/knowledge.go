package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Document is an ingested source file.
type Document struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title,omitempty"`
	Checksum  string    `json:"checksum"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Chunk is a searchable slice of a document.
type Chunk struct {
	ID         int64   `json:"id"`
	DocumentID string  `json:"documentId"`
	Source     string  `json:"source"`
	Ordinal    int     `json:"ordinal"`
	Content    string  `json:"content"`
	Rank       float64 `json:"rank,omitempty"` // FTS5 rank, search results only
}

// Knowledge stores documents and answers full-text queries over their chunks.
type Knowledge struct {
	db        *DB
	chunkSize int
}

// NewKnowledge creates a knowledge base on db. chunkSize <= 0 uses
// DefaultChunkSize.
func NewKnowledge(db *DB, chunkSize int) *Knowledge {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Knowledge{db: db, chunkSize: chunkSize}
}

// Put stores content under source, replacing any previous version. It
// reports false when the stored checksum already matches and nothing changed.
func (k *Knowledge) Put(ctx context.Context, source, title, content string) (*Document, bool, error) {
	sum := sha256.Sum256([]byte(content))
	checksum := hex.EncodeToString(sum[:])

	existing, err := k.Document(ctx, source)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if existing != nil && existing.Checksum == checksum {
		return existing, false, nil
	}

	chunks := SplitChunks(content, k.chunkSize)
	now := time.Now().UTC()

	tx, err := k.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	doc := Document{
		ID:        uuid.New().String(),
		Source:    source,
		Title:     title,
		Checksum:  checksum,
		Chunks:    len(chunks),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
			return nil, false, fmt.Errorf("clearing chunks: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, source, title, checksum, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   checksum = excluded.checksum,
		   updated_at = excluded.updated_at`,
		doc.ID, doc.Source, doc.Title, doc.Checksum,
		doc.CreatedAt.Format(time.DateTime), doc.UpdatedAt.Format(time.DateTime),
	); err != nil {
		return nil, false, fmt.Errorf("storing document: %w", err)
	}

	for i, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (document_id, ordinal, content) VALUES (?, ?, ?)`,
			doc.ID, i, c,
		); err != nil {
			return nil, false, fmt.Errorf("storing chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	k.db.log.Debug().Str("source", source).Int("chunks", len(chunks)).Msg("document stored")
	return &doc, true, nil
}

// Document returns the document stored under source. A missing document
// yields sql.ErrNoRows.
func (k *Knowledge) Document(ctx context.Context, source string) (*Document, error) {
	row := k.db.sql.QueryRowContext(ctx,
		`SELECT d.id, d.source, d.title, d.checksum, d.created_at, d.updated_at,
		        (SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		 FROM documents d WHERE d.source = ?`, source)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Documents lists every stored document ordered by source.
func (k *Knowledge) Documents(ctx context.Context) ([]Document, error) {
	rows, err := k.db.sql.QueryContext(ctx,
		`SELECT d.id, d.source, d.title, d.checksum, d.created_at, d.updated_at,
		        (SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id)
		 FROM documents d ORDER BY d.source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Delete removes a document and its chunks.
func (k *Knowledge) Delete(ctx context.Context, source string) error {
	tx, err := k.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id IN (SELECT id FROM documents WHERE source = ?)`, source); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source); err != nil {
		return err
	}
	return tx.Commit()
}

// Search returns the chunks best matching query, ranked by relevance.
// A query with no searchable terms returns no results. Limit of 0 defaults to 10.
func (k *Knowledge) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 10
	}
	match := matchExpr(query)
	if match == "" {
		return nil, nil
	}

	rows, err := k.db.sql.QueryContext(ctx,
		`SELECT c.id, c.document_id, d.source, c.ordinal, c.content, chunks_fts.rank
		 FROM chunks_fts
		 JOIN chunks c ON c.id = chunks_fts.rowid
		 JOIN documents d ON d.id = c.document_id
		 WHERE chunks_fts MATCH ?
		 ORDER BY chunks_fts.rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Source, &c.Ordinal, &c.Content, &c.Rank); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats returns the number of stored documents and chunks.
func (k *Knowledge) Stats(ctx context.Context) (docs, chunks int, err error) {
	err = k.db.sql.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM chunks)`,
	).Scan(&docs, &chunks)
	return docs, chunks, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var doc Document
	var createdAt, updatedAt string
	if err := s.Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Checksum, &createdAt, &updatedAt, &doc.Chunks); err != nil {
		return nil, err
	}
	doc.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &doc, nil
}

// matchExpr turns free text into an FTS5 expression that ORs each quoted
// term, so punctuation in visitor questions cannot break the query syntax.
func matchExpr(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if len(t) < 2 || stopwords[t] || seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "did": true, "do": true, "does": true,
	"for": true, "from": true, "has": true, "have": true, "he": true, "his": true,
	"how": true, "in": true, "is": true, "it": true, "me": true, "of": true,
	"on": true, "or": true, "tell": true, "the": true, "to": true, "was": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"with": true, "you": true, "about": true,
}
