package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
	"github.com/shopspring/decimal"
)

func CreateProduct(ctx context.Context, db *sql.DB, sku, name string, rarity models.Rarity, buybackPrice, resaleValue decimal.Decimal, stock int) (*models.Product, error) {
	product := &models.Product{QuantityAvailable: stock}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO products (sku, name, rarity, buyback_price, resale_value, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 RETURNING id, sku, name, rarity, buyback_price, resale_value, created_at`,
			sku, name, rarity, buybackPrice, resaleValue).Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Rarity,
			&product.BuybackPrice,
			&product.ResaleValue,
			&product.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO inventory (product_id, quantity_available) VALUES ($1, $2)`,
			product.ID, stock)
		if err != nil {
			return fmt.Errorf("create inventory row: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT p.id, p.sku, p.name, p.rarity, p.buyback_price, p.resale_value, p.created_at,
		       i.quantity_available
		FROM products p
		JOIN inventory i ON i.product_id = p.id
		WHERE p.id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Rarity,
		&product.BuybackPrice,
		&product.ResaleValue,
		&product.CreatedAt,
		&product.QuantityAvailable,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// inStockProducts loads the selectable candidates inside the open-box
// transaction. An empty tier returns candidates of every tier; excluded ids
// are products whose decrement already failed in this attempt. The stable
// ORDER BY keeps the index pick deterministic under a seeded source.
func inStockProducts(ctx context.Context, tx *sql.Tx, tier models.Rarity, excluded []int64) ([]models.Product, error) {
	query := `
		SELECT p.id, p.sku, p.name, p.rarity, p.buyback_price, p.resale_value, p.created_at,
		       i.quantity_available
		FROM products p
		JOIN inventory i ON i.product_id = p.id
		WHERE i.quantity_available > 0
		  AND ($1 = '' OR p.rarity::text = $1)
		  AND ($2::bigint[] IS NULL OR p.id != ALL($2::bigint[]))
		ORDER BY p.id`

	rows, err := tx.QueryContext(ctx, query, string(tier), pq.Array(excluded))
	if err != nil {
		return nil, fmt.Errorf("load in-stock products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Rarity,
			&product.BuybackPrice,
			&product.ResaleValue,
			&product.CreatedAt,
			&product.QuantityAvailable,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// decrementInventory takes one unit of stock if any remains. The quantity
// recheck in the WHERE clause is what prevents oversell when two openers
// race on the same product: exactly one of them affects a row.
func decrementInventory(ctx context.Context, tx *sql.Tx, productID int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE inventory
		 SET quantity_available = quantity_available - 1
		 WHERE product_id = $1
		   AND quantity_available > 0`,
		productID)
	if err != nil {
		return fmt.Errorf("decrement inventory: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT p.id, p.sku, p.name, p.rarity, p.buyback_price, p.resale_value, p.created_at,
		       i.quantity_available
		FROM products p
		JOIN inventory i ON i.product_id = p.id
		ORDER BY p.rarity, p.name
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Rarity,
			&product.BuybackPrice,
			&product.ResaleValue,
			&product.CreatedAt,
			&product.QuantityAvailable,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(products, total, page, pageSize), nil
}
