package recommender

import "sort"

// DefaultNeighbors is the neighbor count used when none is configured.
const DefaultNeighbors = 10

// Neighbors ranks every other user by similarity to target, descending, ties broken by
// ascending row index, and returns the first k. k <= 0 returns all of them.
func Neighbors(model *TrainedModel, target, k int) []int {
	rows, _ := model.Shape()
	if target < 0 || target >= rows {
		return nil
	}

	others := make([]int, 0, rows-1)
	for j := 0; j < rows; j++ {
		if j != target {
			others = append(others, j)
		}
	}

	sort.Slice(others, func(a, b int) bool {
		sa := model.Similarity(target, others[a])
		sb := model.Similarity(target, others[b])
		if sa != sb {
			return sa > sb
		}
		return others[a] < others[b]
	})

	if k > 0 && len(others) > k {
		others = others[:k]
	}
	return others
}

// Candidates collects the product columns with a positive value for each of the target's
// top-k neighbors, in neighbor rank order and then column order. Duplicates are kept; the
// order decides which products survive truncation. With excludeSeen, products the target
// already has a positive value for are skipped.
func Candidates(model *TrainedModel, target, k int, excludeSeen bool) []int {
	var seen []float64
	if excludeSeen {
		seen = model.interactionRow(target)
	}

	var out []int
	for _, u := range Neighbors(model, target, k) {
		for j, v := range model.interactionRow(u) {
			if v <= 0 {
				continue
			}
			if seen != nil && seen[j] > 0 {
				continue
			}
			out = append(out, j)
		}
	}
	return out
}
