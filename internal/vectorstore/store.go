package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raglet/raglet/pkg/types"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrModelMismatch is returned when the index was built with a different
	// embedding provider or model than the one now configured.
	ErrModelMismatch = errors.New("index built with a different embedding model")
)

// Manifest records what was indexed for one source file.
type Manifest struct {
	SourcePath string
	ModTimeNS  int64
	ParamsHash string
	ChunkCount int
	IndexedAt  time.Time
}

// Stats summarizes index contents.
type Stats struct {
	Files  int
	Chunks int
}

// Store is the SQLite-backed vector store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at dbPath and applies
// pending migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent readers; a single writer connection keeps SQLite
	// locking out of the picture.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureModel records or verifies the embedding identity of the index.
// An empty index adopts the given provider/model; a populated index built
// with anything else returns ErrModelMismatch.
func (s *Store) EnsureModel(ctx context.Context, provider, model string, dimension int) error {
	ident := fmt.Sprintf("%s/%s/%d", provider, model, dimension)

	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = 'embedding_identity'").Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO index_meta (key, value) VALUES ('embedding_identity', ?)", ident)
		return err
	case err != nil:
		return fmt.Errorf("read index meta: %w", err)
	case stored != ident:
		return fmt.Errorf("%w: index has %q, configured %q", ErrModelMismatch, stored, ident)
	}
	return nil
}

// ReplaceChunks atomically replaces all chunks for one source file and
// updates its manifest row. Vectors and chunks must be parallel slices.
func (s *Store) ReplaceChunks(ctx context.Context, chunks []types.Chunk, vectors [][]float32, m Manifest) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_path = ?", m.SourcePath); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, source_path, ordinal, content, token_count, embedding, dimension)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		vec := vectors[i]
		if len(vec) == 0 {
			return fmt.Errorf("chunk %d: empty vector", i)
		}
		_, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.SourcePath, chunk.Ordinal, chunk.Text,
			chunk.TokenEstimate, serializeVector(vec), len(vec))
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO manifest (source_path, mod_time_ns, params_hash, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source_path) DO UPDATE SET
			mod_time_ns = excluded.mod_time_ns,
			params_hash = excluded.params_hash,
			chunk_count = excluded.chunk_count,
			indexed_at  = CURRENT_TIMESTAMP`,
		m.SourcePath, m.ModTimeNS, m.ParamsHash, len(chunks))
	if err != nil {
		return fmt.Errorf("update manifest: %w", err)
	}

	return tx.Commit()
}

// DeleteBySource removes a file's chunks and manifest row.
func (s *Store) DeleteBySource(ctx context.Context, sourcePath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_path = ?", sourcePath); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM manifest WHERE source_path = ?", sourcePath); err != nil {
		return fmt.Errorf("delete manifest: %w", err)
	}
	return tx.Commit()
}

// GetManifest returns the manifest row for one source file.
func (s *Store) GetManifest(ctx context.Context, sourcePath string) (Manifest, error) {
	var m Manifest
	err := s.db.QueryRowContext(ctx, `
		SELECT source_path, mod_time_ns, params_hash, chunk_count, indexed_at
		FROM manifest WHERE source_path = ?`, sourcePath).
		Scan(&m.SourcePath, &m.ModTimeNS, &m.ParamsHash, &m.ChunkCount, &m.IndexedAt)
	if err == sql.ErrNoRows {
		return Manifest{}, ErrNotFound
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("get manifest: %w", err)
	}
	return m, nil
}

// ListManifests returns all manifest rows under a root prefix, keyed by
// source path. An empty root returns everything.
func (s *Store) ListManifests(ctx context.Context, root string) (map[string]Manifest, error) {
	query := "SELECT source_path, mod_time_ns, params_hash, chunk_count, indexed_at FROM manifest"
	var args []interface{}
	if root != "" {
		query += " WHERE source_path = ? OR source_path LIKE ? ESCAPE '\\'"
		args = append(args, root, prefixPattern(root))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]Manifest)
	for rows.Next() {
		var m Manifest
		if err := rows.Scan(&m.SourcePath, &m.ModTimeNS, &m.ParamsHash, &m.ChunkCount, &m.IndexedAt); err != nil {
			return nil, err
		}
		out[m.SourcePath] = m
	}
	return out, rows.Err()
}

// Stats counts indexed files and chunks under a root prefix.
func (s *Store) Stats(ctx context.Context, root string) (Stats, error) {
	var st Stats
	query := "SELECT COUNT(*), COALESCE(SUM(chunk_count), 0) FROM manifest"
	var args []interface{}
	if root != "" {
		query += " WHERE source_path = ? OR source_path LIKE ? ESCAPE '\\'"
		args = append(args, root, prefixPattern(root))
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.Files, &st.Chunks); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Purge removes every chunk, manifest row, and the recorded model identity.
func (s *Store) Purge(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DELETE FROM chunks",
		"DELETE FROM manifest",
		"DELETE FROM index_meta",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge: %w", err)
		}
	}
	return tx.Commit()
}

// Search returns chunks under root ranked by cosine similarity to the query
// vector, best first, filtered to scores >= minScore. Ties break on
// (source_path, ordinal) so results are deterministic.
func (s *Store) Search(ctx context.Context, queryVector []float32, root string, limit int, minScore float64) ([]types.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	return searchVector(ctx, s.db, queryVector, root, limit, minScore)
}

// likeEscaper neutralizes LIKE metacharacters in literal path segments.
// Pair its output with an ESCAPE '\' clause.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// prefixPattern matches paths strictly under root. Roots containing % or _
// are matched literally, not as wildcards.
func prefixPattern(root string) string {
	return likeEscaper.Replace(root) + "/%"
}
