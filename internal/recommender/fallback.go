package recommender

import (
	"fmt"
	"math"
	"sort"

	"github.com/temcen/shopsense/internal/catalog"
	"github.com/temcen/shopsense/pkg/models"
)

// Reference anchors a content-based query. When ProductID is set the category and price
// come from that catalog entry and the entry itself is excluded.
type Reference struct {
	ProductID string
	Category  string
	Price     float64
	Exclude   map[string]struct{}
}

type scoredProduct struct {
	product models.Product
	score   float64
}

// ScoreFallback returns up to k products from the reference category scored by
//
//	2*(m - r + 1) - |price - refPrice| / (refPrice + 1)
//
// where m is the number of candidates and r their average descending rating rank
// (1 is the best rated). Products outside the category are never returned. Equal
// scores are ordered by ascending product id.
func ScoreFallback(c *catalog.Catalog, ref Reference, k int) ([]models.Product, error) {
	if ref.ProductID != "" {
		anchor, ok := c.Get(ref.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, ref.ProductID)
		}
		ref.Category = anchor.Category
		ref.Price = anchor.Price
	}
	if k <= 0 {
		return []models.Product{}, nil
	}

	var candidates []models.Product
	for _, p := range c.InCategory(ref.Category) {
		if p.ID == ref.ProductID {
			continue
		}
		if _, skip := ref.Exclude[p.ID]; skip {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return []models.Product{}, nil
	}

	ranks := ratingRanks(candidates)
	m := float64(len(candidates))

	scored := make([]scoredProduct, len(candidates))
	for i, p := range candidates {
		weight := 2 * (m - ranks[p.Rating] + 1)
		penalty := math.Abs(p.Price-ref.Price) / (ref.Price + 1)
		scored[i] = scoredProduct{product: p, score: weight - penalty}
	}

	sort.Slice(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].product.ID < scored[b].product.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]models.Product, len(scored))
	for i, s := range scored {
		out[i] = s.product
	}
	return out, nil
}

// ratingRanks maps each rating to its average 1-based position when sorted descending.
func ratingRanks(products []models.Product) map[float64]float64 {
	ratings := make([]float64, len(products))
	for i, p := range products {
		ratings[i] = p.Rating
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ratings)))

	ranks := make(map[float64]float64)
	for start := 0; start < len(ratings); {
		end := start
		for end+1 < len(ratings) && ratings[end+1] == ratings[start] {
			end++
		}
		// Positions start+1 .. end+1 share their mean.
		ranks[ratings[start]] = float64(start+end+2) / 2
		start = end + 1
	}
	return ranks
}
