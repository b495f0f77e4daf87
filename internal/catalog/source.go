package catalog

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

	"github.com/temcen/shopsense/pkg/models"
)

// Source supplies raw product records.
type Source interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Load reads every product from src and builds a validated catalog.
func Load(ctx context.Context, src Source, logger *logrus.Logger) (*Catalog, error) {
	products, err := src.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	c, err := New(products)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"products":   c.Len(),
		"categories": len(c.Categories()),
	}).Info("Catalog loaded")

	return c, nil
}

var csvColumns = []string{"id", "description", "category", "price", "rating", "image_url"}

// CSVSource reads products from a CSV file with the header
// id,description,category,price,rating,image_url (any column order).
type CSVSource struct {
	Path string
}

func (s *CSVSource) ListProducts(ctx context.Context) ([]models.Product, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses product rows. Missing columns are an error; nothing is synthesized.
func ReadCSV(r io.Reader) ([]models.Product, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog file is empty")
		}
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range csvColumns {
		if _, ok := positions[col]; !ok {
			return nil, fmt.Errorf("catalog file missing column %q", col)
		}
	}

	var products []models.Product
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog line %d: %w", line, err)
		}

		price, err := strconv.ParseFloat(record[positions["price"]], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price on line %d: %w", line, err)
		}
		rating, err := strconv.ParseFloat(record[positions["rating"]], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rating on line %d: %w", line, err)
		}

		products = append(products, models.Product{
			ID:          record[positions["id"]],
			Description: record[positions["description"]],
			Category:    record[positions["category"]],
			Price:       price,
			Rating:      rating,
			ImageURL:    record[positions["image_url"]],
		})
	}

	return products, nil
}

// DatabaseQuerier is the subset of pgxpool.Pool used by the repository.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Repository reads the active catalog from PostgreSQL.
type Repository struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewRepository(db DatabaseQuerier, logger *logrus.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

const listProductsQuery = `
	SELECT id, description, category, price, rating, image_url
	FROM products
	WHERE active = true
	ORDER BY id`

func (r *Repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.Query(ctx, listProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Description, &p.Category, &p.Price, &p.Rating, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product rows failed: %w", err)
	}

	r.logger.WithField("products", len(products)).Debug("Products fetched from PostgreSQL")
	return products, nil
}
