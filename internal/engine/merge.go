package engine

import "github.com/rcliao/rehydrate/internal/model"

// MergeChunks combines base retrieval results with entity-expansion results
// into one duplicate-free list. Base chunks keep their similarity order and
// come first; expansion groups follow in the order their source entities were
// extracted. The first occurrence of a chunk ID wins, so ordering is
// deterministic regardless of fetch completion order, and a re-run on the
// same inputs yields the same output.
func MergeChunks(base []model.Chunk, expansions [][]model.Chunk) []model.Chunk {
	seen := make(map[string]bool, len(base))
	merged := make([]model.Chunk, 0, len(base))

	for _, c := range base {
		if seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		merged = append(merged, c)
	}
	for _, group := range expansions {
		for _, c := range group {
			if seen[c.ChunkID] {
				continue
			}
			seen[c.ChunkID] = true
			merged = append(merged, c)
		}
	}
	return merged
}
