package recommender

// Dedupe keeps the first occurrence of every id and stops after n distinct ids.
// A shorter result is returned when fewer than n distinct ids exist.
func Dedupe(ids []string, n int) []string {
	if n <= 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == n {
			break
		}
	}
	return out
}
