package recommender

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func exampleInteractions() []Interaction {
	// users 1,2,3 x products A,B,C = [[1,0,1],[1,1,0],[0,0,1]]
	return []Interaction{
		{UserID: "1", ProductID: "A", Value: 1},
		{UserID: "1", ProductID: "C", Value: 1},
		{UserID: "2", ProductID: "A", Value: 1},
		{UserID: "2", ProductID: "B", Value: 1},
		{UserID: "3", ProductID: "C", Value: 1},
	}
}

func TestComputeSimilarity_Example(t *testing.T) {
	m, err := BuildMatrix(exampleInteractions())
	require.NoError(t, err)

	sim := ComputeSimilarity(m, 2)
	require.NotNil(t, sim)

	assert.InDelta(t, 1.0, sim.At(0, 0), epsilon)
	assert.InDelta(t, 0.5, sim.At(0, 1), epsilon)
	assert.InDelta(t, 1/math.Sqrt2, sim.At(0, 2), epsilon)
	assert.InDelta(t, 0.0, sim.At(1, 2), epsilon)
}

func TestComputeSimilarity_SharedItemBeatsDisjoint(t *testing.T) {
	// User 3 shares nothing with user 1.
	m, err := BuildMatrix([]Interaction{
		{UserID: "1", ProductID: "A", Value: 1},
		{UserID: "1", ProductID: "C", Value: 1},
		{UserID: "2", ProductID: "A", Value: 1},
		{UserID: "2", ProductID: "B", Value: 1},
		{UserID: "3", ProductID: "B", Value: 1},
	})
	require.NoError(t, err)

	sim := ComputeSimilarity(m, 1)
	assert.Greater(t, sim.At(0, 1), sim.At(0, 2))
	assert.Equal(t, 0.0, sim.At(0, 2))
}

func TestComputeSimilarity_Properties(t *testing.T) {
	var records []Interaction
	for u := 0; u < 25; u++ {
		for p := 0; p < 12; p++ {
			if (u*7+p*3)%5 == 0 {
				records = append(records, Interaction{
					UserID:    fmt.Sprintf("%d", u),
					ProductID: fmt.Sprintf("P%02d", p),
					Value:     float64(1 + (u+p)%4),
				})
			}
		}
	}
	m, err := BuildMatrix(records)
	require.NoError(t, err)

	for _, workers := range []int{1, 4, 0} {
		sim := ComputeSimilarity(m, workers)
		n := m.Rows()
		for i := 0; i < n; i++ {
			row := m.Values.RawRowView(i)
			for j := 0; j < n; j++ {
				v := sim.At(i, j)
				assert.False(t, math.IsNaN(v))
				assert.InDelta(t, sim.At(j, i), v, epsilon)
				assert.InDelta(t, Cosine(row, m.Values.RawRowView(j)), v, epsilon)
			}
			assert.InDelta(t, 1.0, sim.At(i, i), epsilon, "user %s", m.Users[i])
		}
	}
}

func TestComputeSimilarity_ZeroVector(t *testing.T) {
	m, err := BuildMatrix([]Interaction{
		{UserID: "1", ProductID: "A", Value: 2},
		{UserID: "2", ProductID: "A", Value: 1},
		{UserID: "2", ProductID: "A", Value: -1},
	})
	require.NoError(t, err)

	sim := ComputeSimilarity(m, 0)
	assert.Equal(t, 1.0, sim.At(0, 0))
	assert.Equal(t, 0.0, sim.At(1, 1))
	assert.Equal(t, 0.0, sim.At(0, 1))
	assert.Equal(t, 0.0, sim.At(1, 0))
}

func TestComputeSimilarity_Empty(t *testing.T) {
	m, err := BuildMatrix(nil)
	require.NoError(t, err)
	assert.Nil(t, ComputeSimilarity(m, 4))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), epsilon)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-3, 0}), epsilon)
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
}
