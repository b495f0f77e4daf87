// Package graph mirrors the user similarity index into Neo4j as SIMILAR_TO relationships.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/recommender"
)

const batchSize = 500

// Edge is one directed similarity link from a user to one of its nearest neighbors.
type Edge struct {
	From  string
	To    string
	Score float64
	Rank  int
}

// BuildEdges keeps each user's topK neighbors scoring above minScore, in neighbor order.
func BuildEdges(model *recommender.TrainedModel, topK int, minScore float64) []Edge {
	if model.Empty() {
		return nil
	}

	users := model.Users()
	var edges []Edge
	for i := range users {
		rank := 0
		for _, j := range recommender.Neighbors(model, i, -1) {
			if topK > 0 && rank == topK {
				break
			}
			score := model.Similarity(i, j)
			if score <= minScore {
				// Neighbors are sorted, nothing further qualifies.
				break
			}
			rank++
			edges = append(edges, Edge{From: users[i], To: users[j], Score: score, Rank: rank})
		}
	}
	return edges
}

// Runner executes a write query. Neo4jRunner is the production implementation.
type Runner interface {
	Write(ctx context.Context, cypher string, params map[string]interface{}) error
}

type Neo4jRunner struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jRunner(driver neo4j.DriverWithContext) *Neo4jRunner {
	return &Neo4jRunner{driver: driver}
}

func (r *Neo4jRunner) Write(ctx context.Context, cypher string, params map[string]interface{}) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

const upsertEdgesCypher = `
	UNWIND $edges AS edge
	MERGE (a:User {id: edge.from})
	MERGE (b:User {id: edge.to})
	MERGE (a)-[r:SIMILAR_TO]->(b)
	SET r.score = edge.score,
		r.rank = edge.rank,
		r.model_version = $version,
		r.updated_at = datetime()`

const pruneEdgesCypher = `
	MATCH (:User)-[r:SIMILAR_TO]->(:User)
	WHERE r.model_version <> $version
	DELETE r`

// SimilarityExporter writes a model's neighbor graph and removes edges left by older
// models.
type SimilarityExporter struct {
	runner   Runner
	topK     int
	minScore float64
	logger   *logrus.Logger
}

func NewSimilarityExporter(runner Runner, topK int, minScore float64, logger *logrus.Logger) *SimilarityExporter {
	return &SimilarityExporter{runner: runner, topK: topK, minScore: minScore, logger: logger}
}

// Export returns the number of relationships written.
func (e *SimilarityExporter) Export(ctx context.Context, model *recommender.TrainedModel) (int, error) {
	edges := BuildEdges(model, e.topK, e.minScore)
	version := model.Version()

	for start := 0; start < len(edges); start += batchSize {
		end := start + batchSize
		if end > len(edges) {
			end = len(edges)
		}

		batch := make([]map[string]interface{}, 0, end-start)
		for _, edge := range edges[start:end] {
			batch = append(batch, map[string]interface{}{
				"from":  edge.From,
				"to":    edge.To,
				"score": edge.Score,
				"rank":  edge.Rank,
			})
		}

		if err := e.runner.Write(ctx, upsertEdgesCypher, map[string]interface{}{
			"edges":   batch,
			"version": version,
		}); err != nil {
			return start, fmt.Errorf("failed to write similarity edges: %w", err)
		}
	}

	if err := e.runner.Write(ctx, pruneEdgesCypher, map[string]interface{}{"version": version}); err != nil {
		return len(edges), fmt.Errorf("failed to prune stale similarity edges: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"version": version,
		"edges":   len(edges),
		"users":   countSources(edges),
	}).Info("Similarity graph exported to Neo4j")

	return len(edges), nil
}

func countSources(edges []Edge) int {
	seen := make(map[string]struct{})
	for _, e := range edges {
		seen[e.From] = struct{}{}
	}
	return len(seen)
}
