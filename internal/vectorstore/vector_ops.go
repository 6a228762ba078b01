package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/raglet/raglet/pkg/types"
)

// searchVector dispatches to the SQL or Go similarity path depending on the
// build mode.
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, root string, limit int, minScore float64) ([]types.ScoredChunk, error) {
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, root, limit, minScore)
	}
	return searchVectorFallback(ctx, db, queryVector, root, limit, minScore)
}

// searchVectorOptimized computes cosine distance in SQL via sqlite-vec.
// vec_distance_cosine returns distance (lower is better); similarity is
// 1 - distance.
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, root string, limit int, minScore float64) ([]types.ScoredChunk, error) {
	blob := serializeVector(queryVector)

	query := `
		SELECT chunk_id, source_path, ordinal, content, token_count,
		       1.0 - vec_distance_cosine(embedding, ?) AS similarity
		FROM chunks
		WHERE dimension = ?`
	args := []interface{}{blob, len(queryVector)}

	query, args = applyScope(query, args, root)

	if minScore > 0 {
		query += " AND (1.0 - vec_distance_cosine(embedding, ?)) >= ?"
		args = append(args, blob, minScore)
	}

	query += " ORDER BY similarity DESC, source_path ASC, ordinal ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.ScoredChunk, 0, limit)
	for rows.Next() {
		var sc types.ScoredChunk
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.SourcePath, &sc.Chunk.Ordinal,
			&sc.Chunk.Text, &sc.Chunk.TokenEstimate, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// searchVectorFallback loads candidate vectors and scores them in Go.
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, root string, limit int, minScore float64) ([]types.ScoredChunk, error) {
	query := `
		SELECT chunk_id, source_path, ordinal, content, token_count, embedding
		FROM chunks
		WHERE dimension = ?`
	args := []interface{}{len(queryVector)}

	query, args = applyScope(query, args, root)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []types.ScoredChunk
	for rows.Next() {
		var sc types.ScoredChunk
		var blob []byte
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.SourcePath, &sc.Chunk.Ordinal,
			&sc.Chunk.Text, &sc.Chunk.TokenEstimate, &blob); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}
		sc.Score = cosineSimilarity(queryVector, vector)
		if sc.Score < minScore {
			continue
		}
		candidates = append(candidates, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Chunk.SourcePath != candidates[j].Chunk.SourcePath {
			return candidates[i].Chunk.SourcePath < candidates[j].Chunk.SourcePath
		}
		return candidates[i].Chunk.Ordinal < candidates[j].Chunk.Ordinal
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// applyScope restricts a query to paths at or under root.
func applyScope(query string, args []interface{}, root string) (string, []interface{}) {
	if root == "" {
		return query, args
	}
	query += " AND (source_path = ? OR source_path LIKE ? ESCAPE '\\')"
	args = append(args, root, prefixPattern(root))
	return query, args
}

// serializeVector converts a float32 slice to a little-endian byte blob.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing.
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing.
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
