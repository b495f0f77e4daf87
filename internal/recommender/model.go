package recommender

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// symmetryTolerance bounds |S[i][j] - S[j][i]| accepted when a model is reconstructed from a snapshot.
const symmetryTolerance = 1e-9

// TrainedModel is the immutable result of a training run. It is safe for concurrent reads.
type TrainedModel struct {
	version   string
	trainedAt time.Time

	users        []string
	products     []string
	interactions *mat.Dense
	similarity   *mat.SymDense

	userIndex    map[string]int
	productIndex map[string]int
}

// TrainOptions tunes a training run.
type TrainOptions struct {
	// Workers bounds the goroutines used for the similarity computation.
	Workers int
}

// Train builds the interaction matrix and its similarity index. Empty input yields an
// empty model, which the serving path reports as not trained.
func Train(records []Interaction, opts TrainOptions) (*TrainedModel, error) {
	m, err := BuildMatrix(records)
	if err != nil {
		return nil, fmt.Errorf("failed to build interaction matrix: %w", err)
	}

	model, err := NewTrainedModel(m.Users, m.Products, m.Values, ComputeSimilarity(m, opts.Workers))
	if err != nil {
		return nil, err
	}
	model.version = uuid.NewString()
	model.trainedAt = time.Now().UTC()

	return model, nil
}

// NewTrainedModel checks that the ids and matrices line up and builds the id indexes.
// interactions and similarity must be nil when users is empty.
func NewTrainedModel(users, products []string, interactions *mat.Dense, similarity *mat.SymDense) (*TrainedModel, error) {
	userIndex, err := uniqueIndex("user", users)
	if err != nil {
		return nil, err
	}
	productIndex, err := uniqueIndex("product", products)
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		if len(products) != 0 || interactions != nil || similarity != nil {
			return nil, fmt.Errorf("%w: empty user set with %d products", ErrShapeMismatch, len(products))
		}
	} else {
		if interactions == nil || similarity == nil {
			return nil, fmt.Errorf("%w: missing matrices for %d users", ErrShapeMismatch, len(users))
		}
		if r, c := interactions.Dims(); r != len(users) || c != len(products) {
			return nil, fmt.Errorf("%w: interactions are %dx%d, want %dx%d",
				ErrShapeMismatch, r, c, len(users), len(products))
		}
		if n := similarity.SymmetricDim(); n != len(users) {
			return nil, fmt.Errorf("%w: similarity is %dx%d, want %dx%d",
				ErrShapeMismatch, n, n, len(users), len(users))
		}
	}

	return &TrainedModel{
		users:        users,
		products:     products,
		interactions: interactions,
		similarity:   similarity,
		userIndex:    userIndex,
		productIndex: productIndex,
	}, nil
}

func uniqueIndex(kind string, ids []string) (map[string]int, error) {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := idx[id]; dup {
			return nil, fmt.Errorf("%w: duplicate %s id %q", ErrShapeMismatch, kind, id)
		}
		idx[id] = i
	}
	return idx, nil
}

func (m *TrainedModel) Version() string { return m.version }

func (m *TrainedModel) TrainedAt() time.Time { return m.trainedAt }

// Empty reports whether the model has no users and therefore cannot serve.
func (m *TrainedModel) Empty() bool { return m == nil || len(m.users) == 0 }

// Shape is (rows, cols) of the interaction matrix.
func (m *TrainedModel) Shape() (int, int) { return len(m.users), len(m.products) }

// Users returns the ordered user ids. Callers must not modify the slice.
func (m *TrainedModel) Users() []string { return m.users }

// Products returns the ordered product ids. Callers must not modify the slice.
func (m *TrainedModel) Products() []string { return m.products }

func (m *TrainedModel) UserIndex(id string) (int, bool) {
	i, ok := m.userIndex[id]
	return i, ok
}

func (m *TrainedModel) ProductIndex(id string) (int, bool) {
	j, ok := m.productIndex[id]
	return j, ok
}

func (m *TrainedModel) Similarity(i, j int) float64 { return m.similarity.At(i, j) }

func (m *TrainedModel) Interaction(i, j int) float64 { return m.interactions.At(i, j) }

// interactionRow aliases the model's storage and must be treated as read-only.
func (m *TrainedModel) interactionRow(i int) []float64 { return m.interactions.RawRowView(i) }

// Snapshot is the persisted form of a TrainedModel.
type Snapshot struct {
	Version      string      `json:"version"`
	TrainedAt    time.Time   `json:"trained_at"`
	Users        []string    `json:"users"`
	Products     []string    `json:"products"`
	Similarity   [][]float64 `json:"similarity"`
	Interactions [][]float64 `json:"interactions"`
	MatrixShape  [2]int      `json:"matrix_shape"`
}

// Snapshot copies the model into its persisted form.
func (m *TrainedModel) Snapshot() *Snapshot {
	rows, cols := m.Shape()
	s := &Snapshot{
		Version:      m.version,
		TrainedAt:    m.trainedAt,
		Users:        append([]string{}, m.users...),
		Products:     append([]string{}, m.products...),
		Similarity:   make([][]float64, rows),
		Interactions: make([][]float64, rows),
		MatrixShape:  [2]int{rows, cols},
	}
	for i := 0; i < rows; i++ {
		s.Interactions[i] = append([]float64{}, m.interactionRow(i)...)
		s.Similarity[i] = make([]float64, rows)
		for j := 0; j < rows; j++ {
			s.Similarity[i][j] = m.similarity.At(i, j)
		}
	}
	return s
}

// FromSnapshot rebuilds a model, rejecting ragged, asymmetric or non-finite matrices.
func FromSnapshot(s *Snapshot) (*TrainedModel, error) {
	rows, cols := len(s.Users), len(s.Products)
	if s.MatrixShape != [2]int{rows, cols} {
		return nil, fmt.Errorf("%w: matrix_shape %v does not match %d users x %d products",
			ErrShapeMismatch, s.MatrixShape, rows, cols)
	}
	if len(s.Interactions) != rows || len(s.Similarity) != rows {
		return nil, fmt.Errorf("%w: expected %d matrix rows", ErrShapeMismatch, rows)
	}

	if rows > 0 && cols == 0 {
		return nil, fmt.Errorf("%w: %d users without products", ErrShapeMismatch, rows)
	}
	for i := 0; i < rows; i++ {
		if len(s.Interactions[i]) != cols {
			return nil, fmt.Errorf("%w: interaction row %d has %d columns, want %d",
				ErrShapeMismatch, i, len(s.Interactions[i]), cols)
		}
		if len(s.Similarity[i]) != rows {
			return nil, fmt.Errorf("%w: similarity row %d has %d columns, want %d",
				ErrShapeMismatch, i, len(s.Similarity[i]), rows)
		}
	}

	var interactions *mat.Dense
	var similarity *mat.SymDense
	if rows > 0 {
		interactions = mat.NewDense(rows, cols, nil)
		simData := make([]float64, rows*rows)
		for i := 0; i < rows; i++ {
			interactions.SetRow(i, s.Interactions[i])
			for j, v := range s.Similarity[i] {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("%w: non-finite similarity at (%d,%d)", ErrShapeMismatch, i, j)
				}
				if math.Abs(v-s.Similarity[j][i]) > symmetryTolerance {
					return nil, fmt.Errorf("%w: similarity not symmetric at (%d,%d)", ErrShapeMismatch, i, j)
				}
				simData[i*rows+j] = v
			}
		}
		similarity = mat.NewSymDense(rows, simData)
	}

	model, err := NewTrainedModel(s.Users, s.Products, interactions, similarity)
	if err != nil {
		return nil, err
	}
	model.version = s.Version
	model.trainedAt = s.TrainedAt
	return model, nil
}
