package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/rehydrate/internal/episodic"
	"github.com/rcliao/rehydrate/internal/extract"
	"github.com/rcliao/rehydrate/internal/model"
)

// Rehydrate assembles a context bundle for a task. Base semantic retrieval
// failure is fatal; entity expansion and episodic guidance degrade silently
// into diagnostics. The returned bundle always carries diagnostics, including
// when expansion was skipped.
func (e *Engine) Rehydrate(ctx context.Context, task, role string, opts Options) (*model.ContextBundle, error) {
	if opts.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidConfiguration, opts.MaxTokens)
	}
	if opts.BaseK <= 0 {
		return nil, fmt.Errorf("%w: base k must be positive, got %d", ErrInvalidConfiguration, opts.BaseK)
	}

	start := time.Now()
	entities := extract.Extract(task)
	expansionEnabled := EntityExpansionEnabled(opts.NoEntityExpansion) && len(entities) > 0

	diag := model.RetrievalDiagnostics{
		EntitiesFound: len(entities),
		EntityTypes:   entityTypes(entities),
	}

	var (
		base       []model.Chunk
		expansions [][]model.Chunk
		guidance   *model.EpisodicGuidance
	)

	// The semantic and episodic paths are independent reads; run them
	// concurrently. Only the semantic goroutine can fail the call.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		chunks, err := e.retriever.SearchChunks(egCtx, task, opts.BaseK, 0)
		if err != nil {
			return fmt.Errorf("%w: base retrieval: %v", ErrRetrievalUnavailable, err)
		}
		base = chunks

		if !expansionEnabled {
			return nil
		}
		kRelated := PlanExpansion(len(entities), opts.BaseK)
		diag.KRelated = kRelated

		expStart := time.Now()
		groups, allFailed := e.expand(egCtx, entities, kRelated)
		diag.ExpansionLatencyMS = time.Since(expStart).Milliseconds()
		diag.ExpansionUsed = !allFailed
		expansions = groups
		return nil
	})

	eg.Go(func() error {
		if e.episodes == nil {
			return nil
		}
		hits, err := e.episodes.SearchReflections(egCtx, task, e.cfg.EpisodeTopN)
		if err != nil {
			// Recoverable: the bundle simply carries no guidance.
			e.logger.Warn("episodic search failed", zap.Error(err))
			return nil
		}
		guidance = episodic.Compress(hits, episodic.CompressOptions{
			StabilityThreshold: e.cfg.StabilityThreshold,
			MaxBullets:         episodic.DefaultMaxBullets,
			Now:                time.Now(),
		})
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := MergeChunks(base, expansions)
	bundle := e.packBudget(merged, opts.MaxTokens, &diag)
	bundle.Episodic = guidance
	bundle.Diagnostics = diag

	e.logger.Debug("bundle assembled",
		zap.String("role", role),
		zap.Int("entities", diag.EntitiesFound),
		zap.Int("k_related", diag.KRelated),
		zap.Bool("expansion_used", diag.ExpansionUsed),
		zap.Int("chunks", len(bundle.Chunks)),
		zap.Int("tokens", bundle.TokenCount),
		zap.Bool("episodic", guidance != nil),
		zap.Duration("elapsed", time.Since(start)))

	return bundle, nil
}

// expand fans out entity-adjacent fetches, bounded to kRelated concurrent
// requests and the configured latency budget. When the budget expires,
// remaining fetches are abandoned and whatever arrived is kept. Reports
// whether every fetch failed outright.
func (e *Engine) expand(ctx context.Context, entities []model.Entity, kRelated int) ([][]model.Chunk, bool) {
	expCtx, cancel := context.WithTimeout(ctx, e.cfg.ExpansionBudget)
	defer cancel()

	groups := make([][]model.Chunk, len(entities))
	var failures atomic.Int64

	g, gctx := errgroup.WithContext(expCtx)
	g.SetLimit(kRelated)

	for i, ent := range entities {
		i, ent := i, ent
		g.Go(func() error {
			chunks, err := e.retriever.SearchChunks(gctx, ent.Text, kRelated, e.cfg.EntitySimilarityFloor)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					// Budget hit; abandoned, not failed.
					return nil
				}
				e.logger.Warn("entity expansion fetch failed",
					zap.String("entity", ent.Text), zap.Error(err))
				failures.Add(1)
				return nil
			}
			for j := range chunks {
				chunks[j].SourceEntity = ent.Text
			}
			groups[i] = chunks
			return nil
		})
	}
	g.Wait()

	return groups, failures.Load() == int64(len(entities))
}

// packBudget appends merged chunks until the next whole chunk would exceed
// the token cap. Chunk inclusion is all-or-nothing; merged order is already
// relevance-ranked, so truncation drops the least relevant material.
func (e *Engine) packBudget(merged []model.Chunk, maxTokens int, diag *model.RetrievalDiagnostics) *model.ContextBundle {
	bundle := &model.ContextBundle{Chunks: []model.Chunk{}}
	for _, c := range merged {
		t := model.EstimateTokens(c.Text)
		if bundle.TokenCount+t > maxTokens {
			break
		}
		bundle.Chunks = append(bundle.Chunks, c)
		bundle.TokenCount += t
		if c.SourceEntity != "" {
			diag.ChunksAdded++
		}
	}
	return bundle
}

func entityTypes(entities []model.Entity) []string {
	var types []string
	seen := map[model.EntityKind]bool{}
	for _, e := range entities {
		if seen[e.Kind] {
			continue
		}
		seen[e.Kind] = true
		types = append(types, string(e.Kind))
	}
	return types
}
