package recommender

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Interaction links a user to a product with a numeric strength (quantity, rating or count).
type Interaction struct {
	UserID    string  `json:"user_id"`
	ProductID string  `json:"product_id"`
	Value     float64 `json:"value"`
}

// InteractionMatrix is a dense users x products matrix. Values is nil when there are no users.
type InteractionMatrix struct {
	Users    []string
	Products []string
	Values   *mat.Dense
}

func (m *InteractionMatrix) Rows() int { return len(m.Users) }

func (m *InteractionMatrix) Cols() int { return len(m.Products) }

// BuildMatrix aggregates interaction records into a dense matrix. Values for repeated
// (user, product) pairs are summed. Users and products are ordered by NaturalLess.
func BuildMatrix(records []Interaction) (*InteractionMatrix, error) {
	type cell struct{ user, product string }

	sums := make(map[cell]float64, len(records))
	users := make(map[string]struct{})
	products := make(map[string]struct{})

	for i, r := range records {
		if r.UserID == "" || r.ProductID == "" {
			return nil, fmt.Errorf("interaction %d: empty user or product id", i)
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return nil, fmt.Errorf("interaction %d: non-finite value", i)
		}
		sums[cell{r.UserID, r.ProductID}] += r.Value
		users[r.UserID] = struct{}{}
		products[r.ProductID] = struct{}{}
	}

	m := &InteractionMatrix{
		Users:    sortedKeys(users),
		Products: sortedKeys(products),
	}
	if len(m.Users) == 0 {
		return m, nil
	}

	userIdx := indexOf(m.Users)
	productIdx := indexOf(m.Products)

	m.Values = mat.NewDense(len(m.Users), len(m.Products), nil)
	for c, v := range sums {
		m.Values.Set(userIdx[c.user], productIdx[c.product], v)
	}

	return m, nil
}

// NaturalLess orders ids that are both base-10 integers numerically, everything else
// byte-wise. Integer ids sort before non-integer ids.
func NaturalLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return NaturalLess(keys[i], keys[j]) })
	return keys
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}
