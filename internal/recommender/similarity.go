package recommender

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ComputeSimilarity returns the all-pairs cosine similarity of the user rows of m.
// A user whose row is all zeros has similarity 0 with everyone, itself included.
// Rows are processed by up to workers goroutines; workers <= 0 uses GOMAXPROCS.
// It returns nil for an empty matrix.
func ComputeSimilarity(m *InteractionMatrix, workers int) *mat.SymDense {
	n := m.Rows()
	if n == 0 || m.Values == nil {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Unit-length copies of every row: the cosine of two rows is then their dot product.
	unit := make([][]float64, n)
	nonZero := make([]bool, n)
	for i := 0; i < n; i++ {
		row := m.Values.RawRowView(i)
		norm := floats.Norm(row, 2)
		unit[i] = make([]float64, len(row))
		if norm > 0 {
			floats.ScaleTo(unit[i], 1/norm, row)
			nonZero[i] = true
		}
	}

	data := make([]float64, n*n)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if nonZero[i] {
				data[i*n+i] = 1
			}
			// Only the upper triangle is computed; each unordered pair is visited once.
			for j := i + 1; j < n; j++ {
				if !nonZero[i] || !nonZero[j] {
					continue
				}
				s := clamp(floats.Dot(unit[i], unit[j]))
				data[i*n+j] = s
				data[j*n+i] = s
			}
			return nil
		})
	}
	_ = g.Wait()

	return mat.NewSymDense(n, data)
}

// Cosine is the reference definition of the similarity between two vectors.
func Cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(floats.Dot(a, b) / (na * nb))
}

func clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}
