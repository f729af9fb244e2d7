// Package engine assembles bounded, relevance-ranked context bundles.
//
// A rehydration call fans out into independent reads: base semantic
// retrieval, entity-adjacent expansion fetches, and an episodic reflection
// search. Only base retrieval is load-bearing; the enrichment paths degrade
// to a partial bundle and surface in diagnostics instead of failing the call.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/rehydrate/internal/model"
)

// Sentinel errors for caller-side classification.
var (
	// ErrRetrievalUnavailable wraps failures of the mandatory base retrieval.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrInvalidConfiguration reports bad call options before any retrieval.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Retriever is the vector-index collaborator.
type Retriever interface {
	SearchChunks(ctx context.Context, text string, k int, minSimilarity float64) ([]model.Chunk, error)
}

// EpisodeSearcher is the reflection-store collaborator.
type EpisodeSearcher interface {
	SearchReflections(ctx context.Context, task string, topN int) ([]model.ReflectionHit, error)
}

// Config holds engine-level settings shared across calls.
type Config struct {
	// ExpansionBudget caps cumulative entity-adjacent retrieval latency.
	// Once exceeded, in-flight fetches are abandoned.
	ExpansionBudget time.Duration

	// EntitySimilarityFloor drops entity-adjacent chunks whose similarity
	// falls below it, so an entity string match alone cannot pull in noise.
	EntitySimilarityFloor float64

	// StabilityThreshold is the minimum blended score an episode needs to
	// contribute guidance.
	StabilityThreshold float64

	// EpisodeTopN bounds the episodic search.
	EpisodeTopN int
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		ExpansionBudget:       200 * time.Millisecond,
		EntitySimilarityFloor: 0.0,
		StabilityThreshold:    0.7,
		EpisodeTopN:           5,
	}
}

// Options are per-call parameters.
type Options struct {
	// NoEntityExpansion is the CLI rollback override; it always wins.
	NoEntityExpansion bool

	// MaxTokens is the hard bundle cap. Must be positive.
	MaxTokens int

	// BaseK is the base semantic retrieval width. Must be positive.
	BaseK int
}

// Engine orchestrates extraction, retrieval, merging, and budgeting.
type Engine struct {
	retriever Retriever
	episodes  EpisodeSearcher
	cfg       Config
	logger    *zap.Logger
}

// New creates an engine. A nil episodes searcher disables episodic guidance;
// a nil logger disables logging.
func New(retriever Retriever, episodes EpisodeSearcher, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExpansionBudget <= 0 {
		cfg.ExpansionBudget = DefaultConfig().ExpansionBudget
	}
	if cfg.StabilityThreshold == 0 {
		cfg.StabilityThreshold = DefaultConfig().StabilityThreshold
	}
	if cfg.EpisodeTopN <= 0 {
		cfg.EpisodeTopN = DefaultConfig().EpisodeTopN
	}
	return &Engine{
		retriever: retriever,
		episodes:  episodes,
		cfg:       cfg,
		logger:    logger,
	}
}
