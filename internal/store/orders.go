package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
	"github.com/pompom/go-box-store/internal/rarity"
	"github.com/shopspring/decimal"
)

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s", uuid.New().String()[:8])
}

// ReserveBoxes takes qty units of stock for a checkout, picking each box
// uniformly among whatever is in stock, and returns the reserved product
// snapshots. One transaction: either all qty units are reserved or none.
func ReserveBoxes(ctx context.Context, db *sql.DB, picker *rarity.Picker, qty int) ([]models.Product, error) {
	var reserved []models.Product

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		reserved = reserved[:0]

		for n := 0; n < qty; n++ {
			var excluded []int64
			for {
				candidates, err := inStockProducts(ctx, tx, anyTier, excluded)
				if err != nil {
					return err
				}
				if len(candidates) == 0 {
					return database.ErrOutOfStock
				}

				product := candidates[picker.Intn(len(candidates))]

				err = decrementInventory(ctx, tx, product.ID)
				if errors.Is(err, database.ErrInsufficientStock) {
					excluded = append(excluded, product.ID)
					continue
				}
				if err != nil {
					return err
				}

				reserved = append(reserved, product)
				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return reserved, nil
}

type CreateOrderRequest struct {
	UserID          *int64
	StripeSessionID string
	BoxPrice        decimal.Decimal
	ShippingFee     decimal.Decimal
	Products        []models.Product
}

// CreateOrder records a pending order with purchase-time snapshots of the
// reserved products. The order is keyed by the Stripe session id so the
// payment webhook can resolve it.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	subtotal := req.BoxPrice.Mul(decimal.NewFromInt(int64(len(req.Products))))
	total := subtotal.Add(req.ShippingFee)

	order := &models.Order{
		OrderNumber: generateOrderNumber(),
		Status:      models.OrderStatusPending,
		Subtotal:    subtotal,
		ShippingFee: req.ShippingFee,
		TotalAmount: total,
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, status, subtotal, shipping_fee, total_amount, stripe_session_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			 RETURNING id, user_id, stripe_session_id, created_at, updated_at`,
			req.UserID, order.OrderNumber, order.Status, subtotal, req.ShippingFee, total,
			req.StripeSessionID).Scan(
			&order.ID,
			&order.UserID,
			&order.StripeSessionID,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, product := range req.Products {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, product_sku, rarity, price_at_purchase, resale_value_at_purchase, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
				order.ID, product.ID, product.Name, product.SKU, product.Rarity,
				req.BoxPrice, product.ResaleValue)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// MarkOrderPaid drives the pending→paid transition from the payment
// webhook. The shipping address collected by the payment provider is stored
// with the order.
func MarkOrderPaid(ctx context.Context, db *sql.DB, stripeSessionID, paymentIntentID string, addr *models.ShippingAddress) (*models.Order, error) {
	var addrJSON []byte
	if addr != nil {
		var err error
		addrJSON, err = json.Marshal(addr)
		if err != nil {
			return nil, fmt.Errorf("marshal shipping address: %w", err)
		}
	}

	order := &models.Order{}
	err := db.QueryRowContext(ctx,
		`UPDATE orders
		 SET status = $1,
		     stripe_payment_intent_id = $2,
		     shipping_address = $3,
		     updated_at = NOW()
		 WHERE stripe_session_id = $4
		   AND status = $5
		 RETURNING id, order_number, status, total_amount`,
		models.OrderStatusPaid, paymentIntentID, addrJSON, stripeSessionID,
		models.OrderStatusPending).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalAmount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	return order, nil
}

// CancelOrderByPaymentIntent drives pending→cancelled on payment failure.
func CancelOrderByPaymentIntent(ctx context.Context, db *sql.DB, paymentIntentID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, updated_at = NOW()
		 WHERE stripe_payment_intent_id = $2
		   AND status = $3`,
		models.OrderStatusCancelled, paymentIntentID, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}
	var addrJSON []byte

	query := `
		SELECT id, user_id, order_number, status, subtotal, shipping_fee, total_amount,
		       stripe_session_id, stripe_payment_intent_id, shipping_address, created_at, updated_at
		FROM orders
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.Subtotal,
		&order.ShippingFee,
		&order.TotalAmount,
		&order.StripeSessionID,
		&order.StripePaymentIntentID,
		&addrJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if len(addrJSON) > 0 {
		order.ShippingAddress = &models.ShippingAddress{}
		if err := json.Unmarshal(addrJSON, order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}

	itemsQuery := `
		SELECT id, order_id, product_id, product_name, product_sku, rarity,
		       price_at_purchase, resale_value_at_purchase, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductSKU,
			&item.Rarity,
			&item.PriceAtPurchase,
			&item.ResaleValueAtPurchase,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return order, nil
}
