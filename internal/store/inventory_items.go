package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
)

func GetInventoryItem(ctx context.Context, db *sql.DB, id int64) (*models.InventoryItem, error) {
	item := &models.InventoryItem{}

	query := `
		SELECT id, user_id, product_id, product_name, product_sku, buyback_price, status, created_at
		FROM user_inventory
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.ProductName,
		&item.ProductSKU,
		&item.BuybackPrice,
		&item.Status,
		&item.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("get inventory item: %w", err)
	}

	return item, nil
}

func ListUserInventory(ctx context.Context, db *sql.DB, userID int64, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_inventory WHERE user_id = $1`,
		userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count inventory items: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, user_id, product_id, product_name, product_sku, buyback_price, status, created_at
		FROM user_inventory
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()

	var items []models.InventoryItem
	for rows.Next() {
		var item models.InventoryItem
		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductSKU,
			&item.BuybackPrice,
			&item.Status,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(items, total, page, pageSize), nil
}
