// Package interactions reads user-product interaction records for training.
package interactions

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/recommender"
)

// Source supplies interaction records. Repeated pairs are summed by the matrix builder.
type Source interface {
	Interactions(ctx context.Context) ([]recommender.Interaction, error)
}

// valueColumns are accepted names for the interaction strength, in lookup order.
var valueColumns = []string{"value", "quantity", "rating", "count"}

// CSVSource reads one record per row with user_id, product_id and an optional strength
// column. Rows without a strength count as 1.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Interactions(ctx context.Context) ([]recommender.Interaction, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open interactions file: %w", err)
	}
	defer f.Close()

	return ReadRecords(f)
}

// ReadRecords parses user_id,product_id[,value] rows.
func ReadRecords(r io.Reader) ([]recommender.Interaction, error) {
	reader, positions, err := openCSV(r)
	if err != nil {
		return nil, err
	}

	userCol, ok := positions["user_id"]
	if !ok {
		return nil, fmt.Errorf("interactions file missing column %q", "user_id")
	}
	productCol, ok := positions["product_id"]
	if !ok {
		return nil, fmt.Errorf("interactions file missing column %q", "product_id")
	}
	valueCol := -1
	for _, name := range valueColumns {
		if idx, ok := positions[name]; ok {
			valueCol = idx
			break
		}
	}

	var records []recommender.Interaction
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read interactions line %d: %w", line, err)
		}

		value := 1.0
		if valueCol >= 0 && strings.TrimSpace(row[valueCol]) != "" {
			value, err = strconv.ParseFloat(strings.TrimSpace(row[valueCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value on line %d: %w", line, err)
			}
		}

		records = append(records, recommender.Interaction{
			UserID:    strings.TrimSpace(row[userCol]),
			ProductID: strings.TrimSpace(row[productCol]),
			Value:     value,
		})
	}

	return records, nil
}

// PivotCSVSource reads an already pivoted matrix: a user_id column followed by one column
// per product. Empty and zero cells produce no record.
type PivotCSVSource struct {
	Path string
}

func (s *PivotCSVSource) Interactions(ctx context.Context) ([]recommender.Interaction, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open interactions file: %w", err)
	}
	defer f.Close()

	return ReadPivot(f)
}

func ReadPivot(r io.Reader) ([]recommender.Interaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("interactions file is empty")
		}
		return nil, fmt.Errorf("failed to read interactions header: %w", err)
	}
	if len(header) < 2 || strings.ToLower(strings.TrimSpace(header[0])) != "user_id" {
		return nil, fmt.Errorf("pivot file must start with a user_id column followed by product columns")
	}

	products := make([]string, len(header)-1)
	for i, name := range header[1:] {
		products[i] = strings.TrimSpace(name)
		if products[i] == "" {
			return nil, fmt.Errorf("pivot column %d has an empty product id", i+2)
		}
	}

	var records []recommender.Interaction
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read interactions line %d: %w", line, err)
		}

		user := strings.TrimSpace(row[0])
		for i, cell := range row[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s on line %d: %w", products[i], line, err)
			}
			if value == 0 {
				continue
			}
			records = append(records, recommender.Interaction{UserID: user, ProductID: products[i], Value: value})
		}
	}

	return records, nil
}

func openCSV(r io.Reader) (*csv.Reader, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("interactions file is empty")
		}
		return nil, nil, fmt.Errorf("failed to read interactions header: %w", err)
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return reader, positions, nil
}

// DatabaseQuerier is the subset of pgxpool.Pool used by PostgresSource.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PostgresSource aggregates the user_interactions table. Rows without a value count as 1.
type PostgresSource struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewPostgresSource(db DatabaseQuerier, logger *logrus.Logger) *PostgresSource {
	return &PostgresSource{db: db, logger: logger}
}

const interactionsQuery = `
	SELECT user_id::text, item_id::text, SUM(COALESCE(value, 1))
	FROM user_interactions
	WHERE item_id IS NOT NULL
	GROUP BY user_id, item_id
	ORDER BY user_id, item_id`

func (s *PostgresSource) Interactions(ctx context.Context) ([]recommender.Interaction, error) {
	rows, err := s.db.Query(ctx, interactionsQuery)
	if err != nil {
		return nil, fmt.Errorf("interaction query failed: %w", err)
	}
	defer rows.Close()

	var records []recommender.Interaction
	for rows.Next() {
		var r recommender.Interaction
		if err := rows.Scan(&r.UserID, &r.ProductID, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interaction rows failed: %w", err)
	}

	s.logger.WithField("records", len(records)).Debug("Interactions fetched from PostgreSQL")
	return records, nil
}
