package retrieval

import "sort"

// rrfK is the rank offset of reciprocal rank fusion.
const rrfK = 60

// fuse merges rankings (each a list of corpus indices, best first) by reciprocal
// rank fusion and returns at most limit indices. Ties keep corpus order.
func fuse(limit int, rankings ...[]int) []int {
	scores := make(map[int]float64)
	for _, ranking := range rankings {
		for rank, idx := range ranking {
			scores[idx] += 1.0 / float64(rrfK+rank+1)
		}
	}
	out := make([]int, 0, len(scores))
	for idx := range scores {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool {
		if scores[out[i]] != scores[out[j]] {
			return scores[out[i]] > scores[out[j]]
		}
		return out[i] < out[j]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
