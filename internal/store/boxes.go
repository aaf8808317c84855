package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
	"github.com/pompom/go-box-store/internal/rarity"
	"github.com/shopspring/decimal"
)

// BoxConfig is the per-engine configuration for box opens: the fixed box
// price and the seeded rarity picker.
type BoxConfig struct {
	Price  decimal.Decimal
	Picker *rarity.Picker
}

type BoxOpenResult struct {
	Product         models.Product
	BuybackPrice    decimal.Decimal
	NewBalance      decimal.Decimal
	InventoryItemID int64
}

type SellBackResult struct {
	NewBalance decimal.Decimal
}

// anyTier disables the rarity filter when the drawn tier has no stock left.
const anyTier = models.Rarity("")

// OpenBox runs the whole open as one serializable transaction: lock the
// user's balance row, draw a tier, pick a product, take one unit of stock,
// debit the box price, append the ledger entry and create the owned item.
// Either all of it commits or none of it does.
func OpenBox(ctx context.Context, db *sql.DB, cfg BoxConfig, userID int64) (*BoxOpenResult, error) {
	var result *BoxOpenResult

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		balance, err := lockBalance(ctx, tx, userID)
		if err != nil {
			return err
		}

		if balance.LessThan(cfg.Price) {
			return database.ErrInsufficientBalance
		}

		product, err := pickProduct(ctx, tx, cfg.Picker)
		if err != nil {
			return err
		}

		newBalance, err := adjustBalance(ctx, tx, userID, cfg.Price.Neg())
		if err != nil {
			return err
		}

		err = appendTransaction(ctx, tx, userID, cfg.Price.Neg(),
			models.TransactionTypeBoxPurchase, "Mystery box opened", nil)
		if err != nil {
			return err
		}

		var itemID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO user_inventory (user_id, product_id, product_name, product_sku, buyback_price, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 RETURNING id`,
			userID, product.ID, product.Name, product.SKU, product.BuybackPrice,
			models.ItemStatusKept).Scan(&itemID)
		if err != nil {
			return fmt.Errorf("create inventory item: %w", err)
		}

		result = &BoxOpenResult{
			Product:         *product,
			BuybackPrice:    product.BuybackPrice,
			NewBalance:      newBalance,
			InventoryItemID: itemID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// pickProduct draws a tier, then picks uniformly among that tier's in-stock
// products and takes one unit. A tier with no stock falls back once to an
// unconstrained uniform pick over everything in stock. A product drained by
// a concurrent opener between the candidate read and the decrement is
// excluded and the pick repeats; the candidate set shrinks every round, so
// the loop terminates. Only when nothing anywhere has stock does the open
// fail with ErrOutOfStock.
func pickProduct(ctx context.Context, tx *sql.Tx, picker *rarity.Picker) (*models.Product, error) {
	tier := picker.Pick()
	var excluded []int64

	for {
		candidates, err := inStockProducts(ctx, tx, tier, excluded)
		if err != nil {
			return nil, err
		}

		if len(candidates) == 0 {
			if tier != anyTier {
				tier = anyTier
				continue
			}
			return nil, database.ErrOutOfStock
		}

		product := candidates[picker.Intn(len(candidates))]

		err = decrementInventory(ctx, tx, product.ID)
		if errors.Is(err, database.ErrInsufficientStock) {
			excluded = append(excluded, product.ID)
			continue
		}
		if err != nil {
			return nil, err
		}

		return &product, nil
	}
}

// SellBack credits the buyback price recorded when the item was acquired
// and marks the item sold. The recorded snapshot is authoritative; a price
// sent by the client is never part of the credit. Sold is terminal.
func SellBack(ctx context.Context, db *sql.DB, userID, itemID int64) (*SellBackResult, error) {
	var result *SellBackResult

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var (
			ownerID      int64
			productName  string
			buybackPrice decimal.Decimal
			status       string
		)

		err := tx.QueryRowContext(ctx,
			`SELECT user_id, product_name, buyback_price, status
			 FROM user_inventory
			 WHERE id = $1
			 FOR UPDATE`,
			itemID).Scan(&ownerID, &productName, &buybackPrice, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrItemNotFound
			}
			return fmt.Errorf("lock inventory item: %w", err)
		}

		if ownerID != userID {
			return database.ErrItemNotOwned
		}
		if status != models.ItemStatusKept {
			return database.ErrItemAlreadySold
		}

		if _, err := lockBalance(ctx, tx, userID); err != nil {
			return err
		}

		newBalance, err := adjustBalance(ctx, tx, userID, buybackPrice)
		if err != nil {
			return err
		}

		err = appendTransaction(ctx, tx, userID, buybackPrice,
			models.TransactionTypeSellback, fmt.Sprintf("Sold back %s", productName), nil)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE user_inventory SET status = $1 WHERE id = $2`,
			models.ItemStatusSold, itemID)
		if err != nil {
			return fmt.Errorf("mark item sold: %w", err)
		}

		result = &SellBackResult{NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
