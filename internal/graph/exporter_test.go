package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shopsense/internal/recommender"
)

type call struct {
	cypher string
	params map[string]interface{}
}

type fakeRunner struct {
	calls  []call
	failOn int
}

func (r *fakeRunner) Write(ctx context.Context, cypher string, params map[string]interface{}) error {
	r.calls = append(r.calls, call{cypher: cypher, params: params})
	if r.failOn > 0 && len(r.calls) == r.failOn {
		return errors.New("neo4j unavailable")
	}
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func exampleModel(t *testing.T) *recommender.TrainedModel {
	t.Helper()
	// [[1,0,1],[1,1,0],[0,0,1]]
	model, err := recommender.Train([]recommender.Interaction{
		{UserID: "1", ProductID: "A", Value: 1},
		{UserID: "1", ProductID: "C", Value: 1},
		{UserID: "2", ProductID: "A", Value: 1},
		{UserID: "2", ProductID: "B", Value: 1},
		{UserID: "3", ProductID: "C", Value: 1},
	}, recommender.TrainOptions{})
	require.NoError(t, err)
	return model
}

func TestBuildEdges(t *testing.T) {
	model := exampleModel(t)

	t.Run("top one", func(t *testing.T) {
		edges := BuildEdges(model, 1, 0)
		require.Len(t, edges, 3)
		assert.Equal(t, Edge{From: "1", To: "3", Score: edges[0].Score, Rank: 1}, edges[0])
		assert.InDelta(t, 1/math.Sqrt2, edges[0].Score, 1e-9)
		assert.Equal(t, "2", edges[1].From)
		assert.Equal(t, "1", edges[1].To)
		assert.Equal(t, "3", edges[2].From)
		assert.Equal(t, "1", edges[2].To)
	})

	t.Run("zero scores are dropped", func(t *testing.T) {
		edges := BuildEdges(model, 0, 0)
		require.Len(t, edges, 4)
		assert.Equal(t, "2", edges[1].To)
		assert.Equal(t, 2, edges[1].Rank)
		for _, e := range edges {
			assert.Greater(t, e.Score, 0.0)
		}
	})

	t.Run("min score", func(t *testing.T) {
		edges := BuildEdges(model, 0, 0.6)
		assert.Len(t, edges, 2)
	})

	t.Run("empty model", func(t *testing.T) {
		assert.Nil(t, BuildEdges(nil, 3, 0))
	})
}

func TestSimilarityExporter_Export(t *testing.T) {
	runner := &fakeRunner{}
	exporter := NewSimilarityExporter(runner, 2, 0, testLogger())
	model := exampleModel(t)

	written, err := exporter.Export(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[0].cypher, "MERGE (a)-[r:SIMILAR_TO]->(b)")
	assert.Equal(t, model.Version(), runner.calls[0].params["version"])
	assert.Len(t, runner.calls[0].params["edges"], 4)
	assert.Contains(t, runner.calls[1].cypher, "DELETE r")
	assert.Equal(t, model.Version(), runner.calls[1].params["version"])
}

func TestSimilarityExporter_Batches(t *testing.T) {
	// A full graph of 40 users has 40*39 edges: four upsert batches and the prune.
	var records []recommender.Interaction
	for u := 0; u < 40; u++ {
		records = append(records, recommender.Interaction{UserID: fmt.Sprintf("%d", u), ProductID: "shared", Value: 1})
	}
	model, err := recommender.Train(records, recommender.TrainOptions{})
	require.NoError(t, err)

	runner := &fakeRunner{}
	written, err := NewSimilarityExporter(runner, 0, 0, testLogger()).Export(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, 40*39, written)
	assert.Len(t, runner.calls, 5)
}

func TestSimilarityExporter_Failure(t *testing.T) {
	runner := &fakeRunner{failOn: 1}
	_, err := NewSimilarityExporter(runner, 2, 0, testLogger()).Export(context.Background(), exampleModel(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write similarity edges")
	assert.Len(t, runner.calls, 1)
}
