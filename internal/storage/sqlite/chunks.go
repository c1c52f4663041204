// ABOUTME: SQLite-backed chunk store with FTS5 keyword search and cosine vector search
// ABOUTME: Embeddings are stored as little-endian float64 BLOBs next to chunk text
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/harper/wellrag/internal/models"
	"github.com/harper/wellrag/internal/storage"
)

const chunkColumns = `c.id, c.source_document, c.page_number, c.mode, c.text, c.token_count, c.well_ids, c.embedding`

// ChunkStore persists chunks and serves both retrieval backends
type ChunkStore struct {
	db *DB
}

var _ storage.ChunkStore = (*ChunkStore)(nil)

// NewChunkStore creates a new ChunkStore
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// Add inserts chunks in one transaction. Chunks whose ID already exists are skipped.
func (s *ChunkStore) Add(ctx context.Context, chunks ...models.Chunk) (int, error) {
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	added := 0
	for _, c := range chunks {
		wellsJSON, err := json.Marshal(c.WellIDs)
		if err != nil {
			return 0, err
		}
		var blob []byte
		if len(c.Embedding) > 0 {
			blob = vectorToBlob(c.Embedding)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chunks (id, source_document, page_number, mode, text, token_count, well_ids, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.SourceDocument, c.PageNumber, string(c.Mode), c.Text, c.TokenCount, string(wellsJSON), blob)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		added++

		for _, w := range c.WellIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO chunk_wells (chunk_id, well_id) VALUES (?, ?)`, c.ID, w); err != nil {
				return 0, fmt.Errorf("failed to tag chunk %s: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunks: %w", err)
	}
	return added, nil
}

// Get retrieves a chunk by ID
func (s *ChunkStore) Get(ctx context.Context, id string) (models.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks c WHERE c.id = ?`, id)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chunk{}, fmt.Errorf("chunk %q: %w", id, models.ErrNotFound)
	}
	return c, err
}

// Wells lists distinct well identifiers, case-insensitively deduplicated
func (s *ChunkStore) Wells(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT well_id FROM chunk_wells ORDER BY well_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var wells []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		wells = append(wells, w)
	}
	return wells, rows.Err()
}

// Count returns the number of stored chunks
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// SearchVector scans filtered chunks with embeddings and ranks them by cosine similarity
func (s *ChunkStore) SearchVector(ctx context.Context, vector []float64, filter storage.Filter, k int) ([]models.ScoredChunk, error) {
	where, args := filterClause(filter)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks c WHERE c.embedding IS NOT NULL`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("vector scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []models.ScoredChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, models.ScoredChunk{Chunk: c, Score: storage.CosineSimilarity(vector, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return storage.SortScored(results, k), nil
}

// SearchKeyword runs an FTS5 MATCH over the terms and scores hits with bm25.
// FTS5 reports bm25 as a negative rank, so the sign is flipped.
func (s *ChunkStore) SearchKeyword(ctx context.Context, terms []string, filter storage.Filter, k int) ([]models.ScoredChunk, error) {
	match := matchExpression(terms)
	if match == "" {
		return []models.ScoredChunk{}, nil
	}

	where, args := filterClause(filter)
	query := `SELECT ` + chunkColumns + `, -bm25(chunks_fts) AS score
		FROM chunks_fts JOIN chunks c ON c.seq = chunks_fts.rowid
		WHERE chunks_fts MATCH ?` + where + `
		ORDER BY score DESC`
	args = append([]any{match}, args...)
	if k > 0 {
		query += ` LIMIT ?`
		args = append(args, k)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []models.ScoredChunk
	for rows.Next() {
		var score float64
		c, err := scanChunk(rows, &score)
		if err != nil {
			return nil, err
		}
		results = append(results, models.ScoredChunk{Chunk: c, Score: math.Max(0, score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return storage.SortScored(results, k), nil
}

// matchExpression quotes every term so FTS5 treats punctuation as phrase separators
func matchExpression(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func filterClause(filter storage.Filter) (string, []any) {
	var sb strings.Builder
	var args []any
	if filter.Mode != "" {
		sb.WriteString(` AND c.mode = ?`)
		args = append(args, string(filter.Mode))
	}
	if filter.WellID != "" {
		sb.WriteString(` AND EXISTS (SELECT 1 FROM chunk_wells w WHERE w.chunk_id = c.id AND w.well_id = ?)`)
		args = append(args, filter.WellID)
	}
	return sb.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner, extra ...any) (models.Chunk, error) {
	var (
		c         models.Chunk
		mode      string
		wellsJSON sql.NullString
		blob      []byte
	)
	dest := append([]any{&c.ID, &c.SourceDocument, &c.PageNumber, &mode, &c.Text, &c.TokenCount, &wellsJSON, &blob}, extra...)
	if err := row.Scan(dest...); err != nil {
		return models.Chunk{}, err
	}
	c.Mode = models.ChunkMode(mode)
	if wellsJSON.Valid && wellsJSON.String != "" {
		if err := json.Unmarshal([]byte(wellsJSON.String), &c.WellIDs); err != nil {
			c.WellIDs = nil
		}
	}
	if len(blob) > 0 {
		c.Embedding = blobToVector(blob)
	}
	return c, nil
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	vector := make([]float64, len(blob)/8)
	for i := range vector {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}
