package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/rehydrate/internal/chunker"
	"github.com/rcliao/rehydrate/internal/model"
)

// PutDocumentParams holds parameters for indexing a document.
type PutDocumentParams struct {
	Source  string
	Content string
	Tags    []string
}

// Document describes an indexed document.
type Document struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Tags       []string  `json:"tags,omitempty"`
	Version    int       `json:"version"`
	ChunkCount int       `json:"chunks"`
	CreatedAt  time.Time `json:"created_at"`
}

// chunkID derives a stable content address for a chunk. Re-indexing the same
// source content yields the same IDs.
func chunkID(source string, version, seq int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s", source, version, seq, text)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// PutDocument chunks, embeds, and indexes a document. Re-putting the same
// source creates a new version; recency ranking favors the newer document's
// chunks.
func (s *Store) PutDocument(ctx context.Context, p PutDocumentParams) (*Document, error) {
	if p.Source == "" {
		return nil, fmt.Errorf("source required")
	}
	chunks := chunker.Chunk(p.Content, chunker.DefaultOptions())
	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty content")
	}

	now := time.Now().UTC()
	id := s.newID()

	var tagsJSON *string
	if len(p.Tags) > 0 {
		b, _ := json.Marshal(p.Tags)
		j := string(b)
		tagsJSON = &j
	}

	// Embed outside the transaction; embedding calls are slow.
	embeddings := make([]string, len(chunks))
	if s.embedder != nil {
		for i, text := range chunks {
			vec, err := s.embedder.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("embed chunk %d: %w", i, err)
			}
			b, _ := json.Marshal(vec)
			embeddings[i] = string(b)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prevVersion int
	tx.QueryRowContext(ctx,
		`SELECT version FROM documents WHERE source = ? ORDER BY version DESC LIMIT 1`,
		p.Source).Scan(&prevVersion)
	version := prevVersion + 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, source, tags, version, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, p.Source, tagsJSON, version, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	for i, text := range chunks {
		var emb *string
		if embeddings[i] != "" {
			emb = &embeddings[i]
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, seq, text, embedding) VALUES (?, ?, ?, ?, ?)`,
			chunkID(p.Source, version, i, text), id, i, text, emb)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Debug("document indexed",
		zap.String("source", p.Source),
		zap.Int("version", version),
		zap.Int("chunks", len(chunks)),
		zap.Bool("embedded", s.embedder != nil))

	return &Document{
		ID:         id,
		Source:     p.Source,
		Tags:       p.Tags,
		Version:    version,
		ChunkCount: len(chunks),
		CreatedAt:  now,
	}, nil
}

// scanChunk reads a chunk row joined with its document's created_at.
func scanChunkRow(id, docID, text string, embJSON *string, createdAt string) model.Chunk {
	c := model.Chunk{ChunkID: id, DocumentID: docID, Text: text}
	if embJSON != nil {
		json.Unmarshal([]byte(*embJSON), &c.Embedding)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return c
}
