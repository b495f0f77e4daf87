package recommender

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/temcen/shopsense/internal/catalog"
	"github.com/temcen/shopsense/pkg/models"
)

// Source names the path that produced a recommendation.
type Source string

const (
	SourceCollaborative   Source = "collaborative"
	SourceContentFallback Source = "content_fallback"
	SourceNone            Source = "none"
)

// Options configures the serving path.
type Options struct {
	// Neighbors is K, the number of similar users consulted. Zero uses DefaultNeighbors,
	// a negative value consults every other user.
	Neighbors int
	// ExcludeSeen drops products the user already interacted with.
	ExcludeSeen bool
}

func (o Options) neighbors() int {
	if o.Neighbors == 0 {
		return DefaultNeighbors
	}
	return o.Neighbors
}

// Recommendation is an ordered, duplicate-free list of product ids.
type Recommendation struct {
	UserID       string   `json:"user_id"`
	Items        []string `json:"items"`
	Source       Source   `json:"source"`
	ModelVersion string   `json:"model_version"`
}

// Recommend produces at most n products for userID. It reads model and c only.
func Recommend(model *TrainedModel, c *catalog.Catalog, userID string, n int, opts Options) (*Recommendation, error) {
	if model.Empty() {
		return nil, ErrModelNotTrained
	}
	if n <= 0 {
		return nil, ErrInvalidCount
	}
	target, ok := model.UserIndex(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	rec := &Recommendation{
		UserID:       userID,
		ModelVersion: model.Version(),
		Source:       SourceCollaborative,
	}

	products := model.Products()
	columns := Candidates(model, target, opts.neighbors(), opts.ExcludeSeen)
	ids := make([]string, len(columns))
	for i, j := range columns {
		ids[i] = products[j]
	}
	rec.Items = Dedupe(ids, n)
	if len(rec.Items) > 0 {
		return rec, nil
	}

	ref, ok := profileReference(model, c, target)
	if !ok {
		rec.Source = SourceNone
		return rec, nil
	}
	fallback, err := ScoreFallback(c, ref, n)
	if err != nil {
		return nil, err
	}
	if len(fallback) == 0 {
		rec.Source = SourceNone
		return rec, nil
	}

	rec.Source = SourceContentFallback
	for _, p := range fallback {
		rec.Items = append(rec.Items, p.ID)
	}
	return rec, nil
}

// profileReference derives the user's dominant category, the one carrying the largest
// summed interaction weight, and the weighted mean price of the user's products in it.
// Products the user already has are excluded from the fallback.
func profileReference(model *TrainedModel, c *catalog.Catalog, target int) (Reference, bool) {
	type bucket struct {
		weight      float64
		weightPrice float64
		label       string
	}

	buckets := make(map[string]*bucket)
	exclude := make(map[string]struct{})
	products := model.Products()

	for j, v := range model.interactionRow(target) {
		if v <= 0 {
			continue
		}
		exclude[products[j]] = struct{}{}
		p, ok := c.Get(products[j])
		if !ok {
			continue
		}
		key := catalog.NormalizeCategory(p.Category)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{label: p.Category}
			buckets[key] = b
		}
		b.weight += v
		b.weightPrice += v * p.Price
	}
	if len(buckets) == 0 {
		return Reference{}, false
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, key := range keys[1:] {
		if buckets[key].weight > buckets[best].weight {
			best = key
		}
	}

	b := buckets[best]
	return Reference{
		Category: b.label,
		Price:    b.weightPrice / b.weight,
		Exclude:  exclude,
	}, true
}

// Service serves recommendations from the current model and catalog snapshots. Both are
// replaced by pointer swap, so a request sees either the old or the new value in full.
type Service struct {
	model   atomic.Pointer[TrainedModel]
	catalog atomic.Pointer[catalog.Catalog]
	opts    Options
}

func NewService(opts Options) *Service {
	return &Service{opts: opts}
}

// Swap installs a new model and returns the previous one.
func (s *Service) Swap(model *TrainedModel) *TrainedModel {
	return s.model.Swap(model)
}

// SwapCatalog installs a new catalog and returns the previous one.
func (s *Service) SwapCatalog(c *catalog.Catalog) *catalog.Catalog {
	return s.catalog.Swap(c)
}

// Model returns the current model or nil.
func (s *Service) Model() *TrainedModel { return s.model.Load() }

// Catalog returns the current catalog or nil.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog.Load() }

func (s *Service) Recommend(userID string, n int) (*Recommendation, error) {
	return Recommend(s.model.Load(), s.catalog.Load(), userID, n, s.opts)
}

// SimilarProducts runs the content-based scorer anchored on a catalog product.
func (s *Service) SimilarProducts(productID string, k int) ([]models.Product, error) {
	return ScoreFallback(s.catalog.Load(), Reference{ProductID: productID}, k)
}
