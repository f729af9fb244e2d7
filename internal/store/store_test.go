package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"testing"

	"github.com/rcliao/rehydrate/internal/embedding"
	"github.com/rcliao/rehydrate/internal/episodic"
)

// testEmbedder produces deterministic bag-of-words vectors so texts sharing
// tokens get high cosine similarity without a live embedding service.
type testEmbedder struct{}

func (testEmbedder) Dims() int { return 64 }

func (testEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	vec := make([]float32, 64)
	for _, tok := range episodic.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%64]++
	}
	return vec, nil
}

// errEmbedder simulates an unreachable embedding service.
type errEmbedder struct{}

func (errEmbedder) Dims() int { return 64 }

func (errEmbedder) Embed(context.Context, string) (embedding.Vector, error) {
	return nil, fmt.Errorf("embedding service unreachable")
}

func newTestStore(t *testing.T, embedder embedding.Embedder) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), embedder, nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutDocument(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	ctx := context.Background()

	doc, err := s.PutDocument(ctx, PutDocumentParams{
		Source:  "docs/setup.md",
		Content: "Install the binary and run the init command.",
		Tags:    []string{"docs"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("expected version 1, got %d", doc.Version)
	}
	if doc.ChunkCount != 1 {
		t.Errorf("expected 1 chunk, got %d", doc.ChunkCount)
	}

	// Re-putting the same source bumps the version.
	doc2, err := s.PutDocument(ctx, PutDocumentParams{
		Source:  "docs/setup.md",
		Content: "Install the binary, run init, then index your docs.",
	})
	if err != nil {
		t.Fatalf("put v2: %v", err)
	}
	if doc2.Version != 2 {
		t.Errorf("expected version 2, got %d", doc2.Version)
	}
}

func TestPutDocumentValidation(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	if _, err := s.PutDocument(ctx, PutDocumentParams{Content: "no source"}); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := s.PutDocument(ctx, PutDocumentParams{Source: "x", Content: "   "}); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestChunkIDStable(t *testing.T) {
	a := chunkID("src", 1, 0, "same text")
	b := chunkID("src", 1, 0, "same text")
	if a != b {
		t.Errorf("chunk id not stable: %s vs %s", a, b)
	}
	if chunkID("src", 1, 1, "same text") == a {
		t.Error("different seq should address differently")
	}
	if chunkID("other", 1, 0, "same text") == a {
		t.Error("different source should address differently")
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	ctx := context.Background()

	s.PutDocument(ctx, PutDocumentParams{Source: "a.md", Content: "alpha content here"})
	s.SaveReflection(ctx, SaveReflectionParams{TaskDescription: "did a thing"})

	st, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Documents != 1 || st.Chunks != 1 || st.Embedded != 1 || st.Reflections != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if !st.VectorMode {
		t.Error("expected vector mode with embedder configured")
	}
}
