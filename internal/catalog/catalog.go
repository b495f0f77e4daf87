package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/shopsense/pkg/models"
)

// Catalog is an immutable, validated set of products indexed by id and category.
type Catalog struct {
	products   []models.Product
	byID       map[string]int
	byCategory map[string][]int
}

var (
	validate = validator.New()
	folder   = cases.Fold()
)

// New validates every product and builds the lookup indexes. Duplicate ids are rejected.
func New(products []models.Product) (*Catalog, error) {
	c := &Catalog{
		products:   make([]models.Product, 0, len(products)),
		byID:       make(map[string]int, len(products)),
		byCategory: make(map[string][]int),
	}

	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("invalid product %q: %w", p.ID, err)
		}
		if _, exists := c.byID[p.ID]; exists {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}

		idx := len(c.products)
		c.products = append(c.products, p)
		c.byID[p.ID] = idx

		key := NormalizeCategory(p.Category)
		c.byCategory[key] = append(c.byCategory[key], idx)
	}

	return c, nil
}

// NormalizeCategory maps equivalent category labels ("Électronics", "electronics ") to one key.
func NormalizeCategory(category string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(category)))
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Products returns the catalog in load order. Callers must not modify the slice.
func (c *Catalog) Products() []models.Product {
	if c == nil {
		return nil
	}
	return c.products
}

func (c *Catalog) Get(id string) (models.Product, bool) {
	if c == nil {
		return models.Product{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return models.Product{}, false
	}
	return c.products[idx], true
}

// InCategory returns the members of a category in load order.
func (c *Catalog) InCategory(category string) []models.Product {
	if c == nil {
		return nil
	}
	indexes := c.byCategory[NormalizeCategory(category)]
	out := make([]models.Product, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, c.products[idx])
	}
	return out
}

// Categories returns the normalized category keys in ascending order.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.byCategory))
	for key := range c.byCategory {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Popular returns up to n products ordered by rating descending, then id ascending.
func (c *Catalog) Popular(n int) []models.Product {
	if c == nil || n <= 0 {
		return nil
	}
	out := make([]models.Product, len(c.products))
	copy(out, c.products)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
