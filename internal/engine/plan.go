package engine

const (
	minKRelated = 1
	maxKRelated = 8
)

// PlanExpansion converts entity count into the related-chunk fetch width:
// clamp(baseK + entityCount*2, 1, 8). More recognized entities imply a more
// technically specific query, so retrieval widens proportionally; the cap
// bounds latency and token cost.
func PlanExpansion(entityCount, baseK int) int {
	k := baseK + entityCount*2
	if k < minKRelated {
		return minKRelated
	}
	if k > maxKRelated {
		return maxKRelated
	}
	return k
}
