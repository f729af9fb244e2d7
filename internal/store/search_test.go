package store

import (
	"context"
	"testing"
	"time"
)

func seedDocs(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	docs := []PutDocumentParams{
		{Source: "docs/vector.md", Content: "The vector index stores chunk embeddings and ranks them by cosine similarity."},
		{Source: "docs/parser.md", Content: "The query parser tokenizes input and recognizes file paths and identifiers."},
		{Source: "docs/budget.md", Content: "Token budgets cap bundle size; excess chunks are dropped lowest similarity first."},
	}
	for _, d := range docs {
		if _, err := s.PutDocument(ctx, d); err != nil {
			t.Fatalf("seed %s: %v", d.Source, err)
		}
	}
}

func TestSearchChunksVector(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	seedDocs(t, s)

	chunks, err := s.SearchChunks(context.Background(), "cosine similarity over chunk embeddings", 2, 0.0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected results")
	}
	if len(chunks) > 2 {
		t.Errorf("expected at most 2 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Similarity > chunks[i-1].Similarity+simEpsilon {
			t.Errorf("results not ordered by similarity: %v then %v", chunks[i-1].Similarity, chunks[i].Similarity)
		}
	}
	if chunks[0].DocumentID == "" || chunks[0].ChunkID == "" {
		t.Errorf("chunk missing identifiers: %+v", chunks[0])
	}
}

func TestSearchChunksLexicalFallback(t *testing.T) {
	// No embedder at all: FTS5 candidates scored by token overlap.
	s := newTestStore(t, nil)
	seedDocs(t, s)

	chunks, err := s.SearchChunks(context.Background(), "token budgets cap bundle size", 3, 0.0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected lexical results")
	}
	if chunks[0].Similarity <= 0 || chunks[0].Similarity > 1 {
		t.Errorf("lexical similarity out of range: %v", chunks[0].Similarity)
	}
}

func TestSearchChunksEmbedderFailureFallsBack(t *testing.T) {
	// Chunks were indexed without embeddings, and the query embedder errors:
	// search still answers lexically instead of failing.
	s := newTestStore(t, nil)
	seedDocs(t, s)
	s.embedder = errEmbedder{}

	chunks, err := s.SearchChunks(context.Background(), "query parser tokenizes input", 3, 0.0)
	if err != nil {
		t.Fatalf("search should fall back, got %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected fallback results")
	}
}

func TestSearchChunksSimilarityFloor(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	seedDocs(t, s)

	chunks, err := s.SearchChunks(context.Background(), "vector index cosine similarity", 5, 0.99)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, c := range chunks {
		if c.Similarity < 0.99 {
			t.Errorf("chunk below similarity floor: %v", c.Similarity)
		}
	}
}

func TestSearchChunksEmptyQuery(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	seedDocs(t, s)

	chunks, err := s.SearchChunks(context.Background(), "   ", 5, 0.0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no results for blank query, got %d", len(chunks))
	}
}

func TestSearchChunksRecencyTiebreak(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	ctx := context.Background()

	// Identical content indexed twice: identical similarity, so the newer
	// document must rank first.
	if _, err := s.PutDocument(ctx, PutDocumentParams{Source: "old.md", Content: "retry with exponential backoff"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.PutDocument(ctx, PutDocumentParams{Source: "new.md", Content: "retry with exponential backoff"}); err != nil {
		t.Fatal(err)
	}

	chunks, err := s.SearchChunks(ctx, "retry with exponential backoff", 2, 0.0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !chunks[0].CreatedAt.After(chunks[1].CreatedAt) {
		t.Errorf("newer chunk should rank first on tied similarity: %v then %v",
			chunks[0].CreatedAt, chunks[1].CreatedAt)
	}
}
