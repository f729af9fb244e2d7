// Package episodic scores and compresses past task reflections into guidance.
//
// Retrieval over the reflection store is hybrid: short task descriptions
// under-serve pure embedding similarity, so the blended rank mixes cosine
// similarity with token-overlap. Only episodes clearing a stability threshold
// contribute guidance; none qualifying means no guidance, not low-confidence
// noise.
package episodic

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rcliao/rehydrate/internal/model"
)

const (
	// DefaultStabilityThreshold is the minimum blended score an episode needs
	// to contribute guidance.
	DefaultStabilityThreshold = 0.7

	// DefaultMaxBullets caps each guidance list.
	DefaultMaxBullets = 5

	// cosineWeight and lexicalWeight blend the two similarity signals.
	cosineWeight  = 0.7
	lexicalWeight = 0.3

	// recencyHalfScaleDays controls the exponential recency decay used in
	// confidence scoring: exp(-ageDays/30).
	recencyHalfScaleDays = 30.0

	// bulletDupThreshold is the token-overlap score above which two bullets
	// are treated as the same point.
	bulletDupThreshold = 0.8
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases text and splits it into alphanumeric tokens.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// LexicalOverlap computes token Jaccard similarity between two texts.
func LexicalOverlap(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// Blend combines cosine and lexical similarity into one rank score.
// With no embedding available the lexical score stands alone.
func Blend(cosine, lexical float64, hasEmbedding bool) float64 {
	if !hasEmbedding {
		return lexical
	}
	return cosineWeight*cosine + lexicalWeight*lexical
}

// CompressOptions configures episode compression.
type CompressOptions struct {
	StabilityThreshold float64
	MaxBullets         int
	Now                time.Time
}

// DefaultCompressOptions returns the standard compression settings.
func DefaultCompressOptions() CompressOptions {
	return CompressOptions{
		StabilityThreshold: DefaultStabilityThreshold,
		MaxBullets:         DefaultMaxBullets,
		Now:                time.Now(),
	}
}

// Compress distills qualifying episodes into deduplicated guidance bullets
// with a confidence score. Returns nil when no episode clears the threshold.
func Compress(hits []model.ReflectionHit, opts CompressOptions) *model.EpisodicGuidance {
	if opts.MaxBullets <= 0 {
		opts.MaxBullets = DefaultMaxBullets
	}
	if opts.StabilityThreshold == 0 {
		opts.StabilityThreshold = DefaultStabilityThreshold
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var qualifying []model.ReflectionHit
	for _, h := range hits {
		if h.Blended >= opts.StabilityThreshold {
			qualifying = append(qualifying, h)
		}
	}
	if len(qualifying) == 0 {
		return nil
	}

	worked := rankBullets(qualifying, func(h model.ReflectionHit) []string { return h.WhatWorked }, opts.MaxBullets)
	avoid := rankBullets(qualifying, func(h model.ReflectionHit) []string { return h.WhatToAvoid }, opts.MaxBullets)

	return &model.EpisodicGuidance{
		WhatWorked:  worked,
		WhatToAvoid: avoid,
		Confidence:  confidence(qualifying, opts.Now),
	}
}

// bulletGroup accumulates near-identical bullets across episodes.
type bulletGroup struct {
	text      string    // representative (from the strongest episode)
	count     int       // episodes mentioning it
	bestScore float64   // strongest source episode's blended score
	newest    time.Time // most recent source episode
}

// rankBullets merges near-duplicate bullets across episodes and ranks them by
// frequency, then source-episode score, then recency.
func rankBullets(hits []model.ReflectionHit, pick func(model.ReflectionHit) []string, max int) []string {
	// Strongest episodes first so group representatives come from them.
	sorted := make([]model.ReflectionHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Blended > sorted[j].Blended })

	var groups []*bulletGroup
	for _, h := range sorted {
		for _, bullet := range pick(h) {
			bullet = strings.TrimSpace(bullet)
			if bullet == "" {
				continue
			}
			var g *bulletGroup
			for _, cand := range groups {
				if LexicalOverlap(cand.text, bullet) >= bulletDupThreshold {
					g = cand
					break
				}
			}
			if g == nil {
				groups = append(groups, &bulletGroup{
					text:      bullet,
					count:     1,
					bestScore: h.Blended,
					newest:    h.CreatedAt,
				})
				continue
			}
			g.count++
			if h.Blended > g.bestScore {
				g.bestScore = h.Blended
			}
			if h.CreatedAt.After(g.newest) {
				g.newest = h.CreatedAt
			}
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		if groups[i].bestScore != groups[j].bestScore {
			return groups[i].bestScore > groups[j].bestScore
		}
		return groups[i].newest.After(groups[j].newest)
	})

	if len(groups) > max {
		groups = groups[:max]
	}
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.text)
	}
	return out
}

// confidence scores guidance in [0,1], strictly increasing with more
// episodes, higher blended similarity, and more recent episodes:
//
//	avgBlended · (1 − 0.7^n) · (0.5 + 0.5·avgRecency)
//
// where recency = exp(−ageDays/30).
func confidence(hits []model.ReflectionHit, now time.Time) float64 {
	var sumBlended, sumRecency float64
	for _, h := range hits {
		sumBlended += h.Blended
		ageDays := now.Sub(h.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		sumRecency += math.Exp(-ageDays / recencyHalfScaleDays)
	}
	n := float64(len(hits))
	avgBlended := sumBlended / n
	avgRecency := sumRecency / n

	c := avgBlended * (1 - math.Pow(0.7, n)) * (0.5 + 0.5*avgRecency)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
