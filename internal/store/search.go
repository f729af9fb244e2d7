package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/rehydrate/internal/embedding"
	"github.com/rcliao/rehydrate/internal/episodic"
	"github.com/rcliao/rehydrate/internal/model"
)

// simEpsilon is the tolerance under which two similarity scores count as a
// tie and document recency decides the order.
const simEpsilon = 1e-9

// SearchChunks returns the top-k chunks for a query or entity text, ordered
// by similarity descending with ties broken by document recency (newer
// first). Chunks scoring below minSimilarity are dropped. With an embedder
// configured the rank is cosine similarity over stored embeddings; without
// one it falls back to FTS5 candidates scored by lexical overlap.
func (s *Store) SearchChunks(ctx context.Context, text string, k int, minSimilarity float64) ([]model.Chunk, error) {
	if k <= 0 {
		k = 5
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	if s.embedder == nil {
		return s.searchChunksLexical(ctx, text, k, minSimilarity)
	}

	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("query embedding failed, falling back to lexical search", zap.Error(err))
		return s.searchChunksLexical(ctx, text, k, minSimilarity)
	}
	return s.searchChunksVector(ctx, queryVec, k, minSimilarity)
}

// searchChunksVector brute-forces cosine similarity over stored embeddings.
func (s *Store) searchChunksVector(ctx context.Context, queryVec embedding.Vector, k int, minSimilarity float64) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.text, c.embedding, d.created_at
		FROM chunks c
		INNER JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var candidates []model.Chunk
	for rows.Next() {
		var id, docID, text, createdAt string
		var embJSON *string
		if err := rows.Scan(&id, &docID, &text, &embJSON, &createdAt); err != nil {
			return nil, err
		}
		c := scanChunkRow(id, docID, text, embJSON, createdAt)
		c.Similarity = embedding.CosineSimilarity(queryVec, c.Embedding)
		if c.Similarity < minSimilarity {
			continue
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rankChunks(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// searchChunksLexical narrows candidates with FTS5 then scores them by token
// overlap so the similarity scale matches the vector path's [0,1].
func (s *Store) searchChunksLexical(ctx context.Context, text string, k int, minSimilarity float64) ([]model.Chunk, error) {
	match := ftsQuery(text)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.text, c.embedding, d.created_at
		FROM chunks_fts f
		INNER JOIN chunks c ON c.rowid = f.rowid
		INNER JOIN documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ?
		LIMIT ?`, match, k*4)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	var candidates []model.Chunk
	for rows.Next() {
		var id, docID, chunkText, createdAt string
		var embJSON *string
		if err := rows.Scan(&id, &docID, &chunkText, &embJSON, &createdAt); err != nil {
			return nil, err
		}
		c := scanChunkRow(id, docID, chunkText, embJSON, createdAt)
		c.Similarity = episodic.LexicalOverlap(text, chunkText)
		if c.Similarity < minSimilarity || c.Similarity == 0 {
			continue
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rankChunks(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// rankChunks orders by similarity descending, recency breaking ties.
func rankChunks(chunks []model.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if math.Abs(chunks[i].Similarity-chunks[j].Similarity) > simEpsilon {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		return chunks[i].CreatedAt.After(chunks[j].CreatedAt)
	})
}

// ftsQuery builds an OR query of quoted tokens, since raw user text is not
// valid FTS5 syntax.
func ftsQuery(text string) string {
	tokens := episodic.Tokenize(text)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(tokens))
	seen := map[string]bool{}
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}
