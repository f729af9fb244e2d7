// Package model defines the core rehydration data types.
package model

import "time"

// EntityKind classifies a structurally recognized span in a query.
type EntityKind string

const (
	KindClassOrFunction    EntityKind = "class_or_function"
	KindVariableOrFunction EntityKind = "variable_or_function"
	KindConstant           EntityKind = "constant"
	KindFilePath           EntityKind = "file_path"
	KindURL                EntityKind = "url"
	KindEmail              EntityKind = "email"
)

// Entity is a recognized token/span in a task query. Entities live for one
// rehydration call and are never persisted.
type Entity struct {
	Text       string     `json:"text"`
	Kind       EntityKind `json:"kind"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

// Chunk is a retrievable unit of indexed text. The ID is content-addressed
// and stable across re-indexing of identical content.
type Chunk struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"-"`
	Similarity   float64   `json:"similarity"`
	SourceEntity string    `json:"source_entity,omitempty"`
	CreatedAt    time.Time `json:"-"`
}

// Reflection is a stored record of a past completed task. Written by the
// task-completion hook, read-only to the retrieval engine.
type Reflection struct {
	EpisodeID       string    `json:"episode_id"`
	TaskDescription string    `json:"task_description"`
	WhatWorked      []string  `json:"what_worked,omitempty"`
	WhatToAvoid     []string  `json:"what_to_avoid,omitempty"`
	Agent           string    `json:"agent,omitempty"`
	TaskType        string    `json:"task_type,omitempty"`
	Embedding       []float32 `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReflectionHit is a reflection scored against a task description.
// Blended combines embedding cosine similarity with lexical overlap.
type ReflectionHit struct {
	Reflection
	Blended float64 `json:"blended"`
	Cosine  float64 `json:"cosine"`
	Lexical float64 `json:"lexical"`
}

// EpisodicGuidance is compressed what-worked / what-to-avoid advice distilled
// from past episodes similar to the current task.
type EpisodicGuidance struct {
	WhatWorked  []string `json:"what_worked,omitempty"`
	WhatToAvoid []string `json:"what_to_avoid,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// RetrievalDiagnostics is attached to every bundle so callers can tell
// "expansion disabled" apart from "no entities found". Write-once per call.
type RetrievalDiagnostics struct {
	EntitiesFound      int      `json:"entities_found"`
	EntityTypes        []string `json:"entity_types,omitempty"`
	KRelated           int      `json:"k_related"`
	ExpansionLatencyMS int64    `json:"expansion_latency_ms"`
	ChunksAdded        int      `json:"chunks_added"`
	ExpansionUsed      bool     `json:"expansion_used"`
}

// ContextBundle is the final budget-constrained payload returned to a caller.
// Immutable once returned.
type ContextBundle struct {
	Chunks      []Chunk              `json:"chunks"`
	Episodic    *EpisodicGuidance    `json:"episodic_guidance,omitempty"`
	Diagnostics RetrievalDiagnostics `json:"diagnostics"`
	TokenCount  int                  `json:"token_count"`
}

// EstimateTokens approximates token count from text length (1 token ≈ 4 chars).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
