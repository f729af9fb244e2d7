package store

import (
	"context"
	"testing"
)

func TestSaveReflection(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	ctx := context.Background()

	r, err := s.SaveReflection(ctx, SaveReflectionParams{
		TaskDescription: "migrate the config loader to YAML",
		WhatWorked:      []string{"kept the old loader behind a flag"},
		WhatToAvoid:     []string{"editing both loaders at once"},
		Agent:           "coder",
		TaskType:        "refactor",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if r.EpisodeID == "" {
		t.Error("expected episode id")
	}
	if len(r.Embedding) == 0 {
		t.Error("expected embedding with embedder configured")
	}

	if _, err := s.SaveReflection(ctx, SaveReflectionParams{}); err == nil {
		t.Error("expected error for empty task description")
	}
}

func TestSearchReflectionsHybridRank(t *testing.T) {
	s := newTestStore(t, testEmbedder{})
	ctx := context.Background()

	tasks := []string{
		"fix the retry logic in the http client",
		"add pagination to the list endpoint",
		"write docs for the export command",
	}
	for _, task := range tasks {
		if _, err := s.SaveReflection(ctx, SaveReflectionParams{TaskDescription: task, WhatWorked: []string{"worked"}}); err != nil {
			t.Fatalf("save %q: %v", task, err)
		}
	}

	hits, err := s.SearchReflections(ctx, "fix retry logic in the http client", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].TaskDescription != tasks[0] {
		t.Errorf("expected retry episode first, got %q", hits[0].TaskDescription)
	}
	if hits[0].Blended <= hits[len(hits)-1].Blended {
		t.Errorf("hits not ordered by blended score: %v ... %v", hits[0].Blended, hits[len(hits)-1].Blended)
	}
	if hits[0].Lexical == 0 {
		t.Error("expected nonzero lexical component for near-identical task")
	}
	if hits[0].Cosine == 0 {
		t.Error("expected nonzero cosine component with embeddings")
	}
}

func TestSearchReflectionsLexicalOnly(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	if _, err := s.SaveReflection(ctx, SaveReflectionParams{TaskDescription: "tune the cache eviction policy"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	hits, err := s.SearchReflections(ctx, "tune the cache eviction policy", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	// Without embeddings the blended score is the lexical score alone.
	if hits[0].Blended != hits[0].Lexical {
		t.Errorf("lexical-only blend mismatch: blended %v, lexical %v", hits[0].Blended, hits[0].Lexical)
	}
	if hits[0].Blended < 0.99 {
		t.Errorf("identical task should score ~1.0 lexically, got %v", hits[0].Blended)
	}
}

func TestSearchReflectionsTopN(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		s.SaveReflection(ctx, SaveReflectionParams{TaskDescription: "repeated deploy task with shared words"})
	}

	hits, err := s.SearchReflections(ctx, "deploy task", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("expected topN=3 hits, got %d", len(hits))
	}
}
