// Package extract recognizes structural entities in task queries.
//
// Recognition is pattern-based (casing conventions, path/URL/email shapes)
// rather than statistical, kept behind a single Extract function so a learned
// recognizer can replace it without touching downstream contracts.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rcliao/rehydrate/internal/model"
)

// matcher pairs a compiled pattern with the entity kind it emits.
// Matchers are applied in order; earlier (more specific) matchers claim
// their spans first, so a file path is never re-reported as an identifier.
type matcher struct {
	kind       model.EntityKind
	confidence float64
	re         *regexp.Regexp
}

var matchers = []matcher{
	{model.KindEmail, 0.95, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	{model.KindURL, 0.95, regexp.MustCompile(`https?://[^\s]+`)},
	{model.KindFilePath, 0.90, regexp.MustCompile(`(?:[A-Za-z0-9_~.-]+/)+[A-Za-z0-9_.-]+|[A-Za-z0-9_-]+\.[A-Za-z][A-Za-z0-9]{0,5}\b`)},
	{model.KindConstant, 0.80, regexp.MustCompile(`\b[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+\b`)},
	{model.KindClassOrFunction, 0.75, regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]*)+\b`)},
	{model.KindVariableOrFunction, 0.60, regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b|\b[a-z][a-z0-9]+(?:[A-Z][a-z0-9]*)+\b`)},
}

// Extract scans a query and returns recognized entities ordered by position.
// Queries with no recognizable structure return an empty slice; malformed or
// empty input is never an error.
func Extract(query string) []model.Entity {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var entities []model.Entity
	var claimed [][2]int
	seen := map[string]bool{}

	for _, m := range matchers {
		for _, span := range m.re.FindAllStringIndex(query, -1) {
			start, end := span[0], span[1]
			text := trimPunct(query[start:end])
			if text == "" {
				continue
			}
			end = start + len(text)
			if overlaps(claimed, start, end) {
				continue
			}
			key := string(m.kind) + "\x00" + text
			claimed = append(claimed, [2]int{start, end})
			if seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, model.Entity{
				Text:       text,
				Kind:       m.kind,
				Confidence: m.confidence,
				Start:      start,
				End:        end,
			})
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Start < entities[j].Start
	})
	return entities
}

// trimPunct strips trailing sentence punctuation that greedy patterns
// (URLs especially) tend to swallow.
func trimPunct(s string) string {
	return strings.TrimRight(s, ".,;:!?)\"'")
}

func overlaps(claimed [][2]int, start, end int) bool {
	for _, c := range claimed {
		if start < c[1] && end > c[0] {
			return true
		}
	}
	return false
}
