package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/observer/internal/models"
)

// PostgresProductRepository reads and writes tracked products and their price history.
type PostgresProductRepository struct {
	DB *sql.DB
}

// NewPostgresProductRepository creates a new PostgresProductRepository.
func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{DB: db}
}

const productColumns = `p.id, p.brand, p.product_name, p.price, p.discount_rate, p.original_price, p.product_url, p.image_url, p.category`

// SearchProducts returns products whose name or brand contains query, and the
// total number of matches.
func (r *PostgresProductRepository) SearchProducts(ctx context.Context, query string, offset, limit int) ([]models.Product, int, error) {
	pattern := "%" + query + "%"

	var total int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products p WHERE p.product_name ILIKE $1 OR p.brand ILIKE $1
	`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("SearchProducts count: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products p
		WHERE p.product_name ILIKE $1 OR p.brand ILIKE $1
		ORDER BY p.id LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("SearchProducts: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := attachHistory(ctx, r.DB, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProduct returns one product with its full price history or ErrNotFound.
func (r *PostgresProductRepository) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	var p models.Product
	err := r.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1`, id).
		Scan(&p.ID, &p.Brand, &p.Name, &p.Price, &p.DiscountRate, &p.OriginalPrice, &p.URL, &p.ImageURL, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("GetProduct: %w", err)
	}
	list := []models.Product{p}
	if err := attachHistory(ctx, r.DB, list); err != nil {
		return models.Product{}, err
	}
	return list[0], nil
}

// UpsertProduct inserts or updates p and appends its price history within a transaction.
func (r *PostgresProductRepository) UpsertProduct(ctx context.Context, p models.Product) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, brand, product_name, price, discount_rate, original_price, product_url, image_url, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			brand = EXCLUDED.brand,
			product_name = EXCLUDED.product_name,
			price = EXCLUDED.price,
			discount_rate = EXCLUDED.discount_rate,
			original_price = EXCLUDED.original_price,
			product_url = EXCLUDED.product_url,
			image_url = EXCLUDED.image_url,
			category = EXCLUDED.category
	`, p.ID, p.Brand, p.Name, p.Price, p.DiscountRate, p.OriginalPrice, p.URL, p.ImageURL, p.Category)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	for _, h := range p.PriceHistory {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO price_history (product_id, date, price) VALUES ($1, $2, $3)
			ON CONFLICT (product_id, date) DO UPDATE SET price = EXCLUDED.price
		`, p.ID, h.Date, h.Price)
		if err != nil {
			return fmt.Errorf("price history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// attachHistory loads the price history of all products in one query.
func attachHistory(ctx context.Context, db *sql.DB, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]int64, len(products))
	index := make(map[int64]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := db.QueryContext(ctx, `
		SELECT product_id, id, date, price FROM price_history
		WHERE product_id = ANY($1) ORDER BY date
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("price history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID int64
		var h models.PricePoint
		if err := rows.Scan(&productID, &h.ID, &h.Date, &h.Price); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].PriceHistory = append(products[i].PriceHistory, h)
		}
	}
	return rows.Err()
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Brand, &p.Name, &p.Price, &p.DiscountRate, &p.OriginalPrice, &p.URL, &p.ImageURL, &p.Category); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}
