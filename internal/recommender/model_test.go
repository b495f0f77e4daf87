package recommender

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTrain(t *testing.T) {
	model, err := Train(exampleInteractions(), TrainOptions{Workers: 2})
	require.NoError(t, err)

	assert.NotEmpty(t, model.Version())
	assert.False(t, model.TrainedAt().IsZero())
	assert.Equal(t, []string{"1", "2", "3"}, model.Users())
	assert.Equal(t, []string{"A", "B", "C"}, model.Products())

	rows, cols := model.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)

	i, ok := model.UserIndex("2")
	require.True(t, ok)
	assert.Equal(t, 1, i)
	j, ok := model.ProductIndex("C")
	require.True(t, ok)
	assert.Equal(t, 2, j)
	assert.Equal(t, 1.0, model.Interaction(i, 0))

	_, ok = model.UserIndex("99")
	assert.False(t, ok)
}

func TestTrain_Empty(t *testing.T) {
	model, err := Train(nil, TrainOptions{})
	require.NoError(t, err)
	assert.True(t, model.Empty())
	assert.Empty(t, model.Users())
	assert.Empty(t, model.Products())
}

func TestNewTrainedModel_ShapeErrors(t *testing.T) {
	interactions := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	similarity := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	tests := []struct {
		name     string
		users    []string
		products []string
		inter    *mat.Dense
		sim      *mat.SymDense
	}{
		{"duplicate users", []string{"1", "1"}, []string{"A", "B"}, interactions, similarity},
		{"duplicate products", []string{"1", "2"}, []string{"A", "A"}, interactions, similarity},
		{"too few users", []string{"1"}, []string{"A", "B"}, interactions, similarity},
		{"too many products", []string{"1", "2"}, []string{"A", "B", "C"}, interactions, similarity},
		{"missing similarity", []string{"1", "2"}, []string{"A", "B"}, interactions, nil},
		{"products without users", nil, []string{"A"}, nil, nil},
		{"similarity size", []string{"1", "2"}, []string{"A", "B"}, interactions, mat.NewSymDense(3, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTrainedModel(tt.users, tt.products, tt.inter, tt.sim)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShapeMismatch))
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	model, err := Train(exampleInteractions(), TrainOptions{})
	require.NoError(t, err)

	snap := model.Snapshot()
	assert.Equal(t, [2]int{3, 3}, snap.MatrixShape)
	assert.Len(t, snap.Similarity, 3)

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)

	assert.Equal(t, model.Version(), restored.Version())
	assert.Equal(t, model.Users(), restored.Users())
	assert.Equal(t, model.Products(), restored.Products())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, model.Similarity(i, j), restored.Similarity(i, j), epsilon)
			assert.Equal(t, model.Interaction(i, j), restored.Interaction(i, j))
		}
	}
}

func TestFromSnapshot_Rejects(t *testing.T) {
	valid := func() *Snapshot {
		return &Snapshot{
			Users:        []string{"1", "2"},
			Products:     []string{"A"},
			Similarity:   [][]float64{{1, 0.5}, {0.5, 1}},
			Interactions: [][]float64{{1}, {2}},
			MatrixShape:  [2]int{2, 1},
		}
	}

	_, err := FromSnapshot(valid())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"shape mismatch", func(s *Snapshot) { s.MatrixShape = [2]int{2, 2} }},
		{"asymmetric", func(s *Snapshot) { s.Similarity[0][1] = 0.4 }},
		{"ragged similarity", func(s *Snapshot) { s.Similarity[1] = []float64{0.5} }},
		{"ragged interactions", func(s *Snapshot) { s.Interactions[0] = []float64{1, 2} }},
		{"missing row", func(s *Snapshot) { s.Interactions = s.Interactions[:1] }},
		{"nan", func(s *Snapshot) { s.Similarity[1][1] = math.NaN() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			_, err := FromSnapshot(s)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrShapeMismatch)
		})
	}
}
