package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/observer/internal/models"
	"github.com/atinyakov/observer/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProductRepository defines the product reads required by CatalogService.
type ProductRepository interface {
	SearchProducts(ctx context.Context, query string, offset, limit int) ([]models.Product, int, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
}

// CatalogService implements product search and detail.
type CatalogService struct {
	repo ProductRepository
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo ProductRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// Search returns page (zero-based) of products matching query.
func (s *CatalogService) Search(ctx context.Context, query string, page, size int) (models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || page < 0 {
		return models.SearchResult{}, ErrInvalidInput
	}
	size = clampPageSize(size)

	products, total, err := s.repo.SearchProducts(ctx, query, page*size, size)
	if err != nil {
		return models.SearchResult{}, err
	}
	totalPages := (total + size - 1) / size
	return models.SearchResult{
		Message: "ok",
		Data:    products,
		Pagination: models.Pagination{
			CurrentPage:   page,
			TotalPages:    totalPages,
			PageSize:      size,
			TotalElements: total,
			Last:          page >= totalPages-1,
		},
	}, nil
}

// Product returns one product with its price history.
func (s *CatalogService) Product(ctx context.Context, id int64) (models.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Product{}, ErrNotFound
	}
	return p, err
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	}
	return size
}

// ProductWriter stores products.
type ProductWriter interface {
	UpsertProduct(ctx context.Context, p models.Product) error
}

// ImportProducts reads a JSON array of products from r and stores each one.
// It returns the number stored before the first failure.
func ImportProducts(ctx context.Context, w ProductWriter, r io.Reader) (int, error) {
	var products []models.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return 0, fmt.Errorf("decode products: %w", err)
	}
	for i, p := range products {
		if p.ID == 0 || p.Name == "" {
			return i, fmt.Errorf("product %d: %w", i, ErrInvalidInput)
		}
		if err := w.UpsertProduct(ctx, p); err != nil {
			return i, fmt.Errorf("store product %d: %w", p.ID, err)
		}
	}
	return len(products), nil
}
