package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
	"github.com/pompom/go-box-store/internal/store"
	"github.com/shopspring/decimal"
)

func TestReserveBoxesAndCreateOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "checkout@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	mustCreateProduct(t, ctx, db, "ORD-001", "Poster Tube", models.RarityCommon,
		decimal.NewFromInt(5), decimal.NewFromInt(8), 5)
	mustCreateProduct(t, ctx, db, "ORD-002", "Keycap Set", models.RarityUncommon,
		decimal.NewFromInt(12), decimal.NewFromInt(18), 5)

	picker := defaultPicker(t)

	reserved, err := store.ReserveBoxes(ctx, db, picker, 3)
	if err != nil {
		t.Fatalf("Reserve boxes: %v", err)
	}
	if len(reserved) != 3 {
		t.Fatalf("Expected 3 reserved products, got %d", len(reserved))
	}

	var remaining int
	err = db.QueryRowContext(ctx,
		`SELECT SUM(quantity_available) FROM inventory`).Scan(&remaining)
	if err != nil {
		t.Fatalf("Sum inventory: %v", err)
	}
	if remaining != 7 {
		t.Errorf("Expected 7 units remaining, got %d", remaining)
	}

	shippingFee := decimal.NewFromInt(5)
	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		UserID:          &user.ID,
		StripeSessionID: "cs_test_order_1",
		BoxPrice:        boxPrice,
		ShippingFee:     shippingFee,
		Products:        reserved,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if order.ID == 0 {
		t.Error("Order ID should not be 0")
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected pending order, got %s", order.Status)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(45)) {
		t.Errorf("Expected subtotal 45, got %s", order.Subtotal)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected total 50, got %s", order.TotalAmount)
	}

	loaded, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if len(loaded.Items) != 3 {
		t.Errorf("Expected 3 order items, got %d", len(loaded.Items))
	}
	for _, item := range loaded.Items {
		if !item.PriceAtPurchase.Equal(boxPrice) {
			t.Errorf("Expected item price %s, got %s", boxPrice, item.PriceAtPurchase)
		}
	}
}

// Reservation is all-or-nothing: asking for more boxes than total stock must
// reserve none of them.
func TestReserveBoxesOutOfStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustCreateProduct(t, ctx, db, "ORD-003", "Mystery Patch", models.RarityCommon,
		decimal.NewFromInt(5), decimal.NewFromInt(8), 3)

	_, err := store.ReserveBoxes(ctx, db, defaultPicker(t), 5)
	if !errors.Is(err, database.ErrOutOfStock) {
		t.Errorf("Expected out of stock error, got: %v", err)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.QuantityAvailable != 3 {
		t.Errorf("Stock should remain 3, got %d", productAfter.QuantityAvailable)
	}
}

func TestConcurrentReserveBoxes(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := mustCreateProduct(t, ctx, db, "ORD-004", "Mini Print", models.RarityCommon,
		decimal.NewFromInt(5), decimal.NewFromInt(8), 20)

	picker := defaultPicker(t)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := store.ReserveBoxes(ctx, db, picker, 2)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrOutOfStock):
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 10 {
		t.Errorf("Expected 10 successful reservations, got %d", successCount)
	}

	productAfter, err := store.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.QuantityAvailable != 0 {
		t.Errorf("Expected final stock 0, got %d", productAfter.QuantityAvailable)
	}
}

func TestMarkOrderPaid(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	mustCreateProduct(t, ctx, db, "ORD-005", "Pin Set", models.RarityCommon,
		decimal.NewFromInt(5), decimal.NewFromInt(8), 5)

	reserved, err := store.ReserveBoxes(ctx, db, defaultPicker(t), 1)
	if err != nil {
		t.Fatalf("Reserve boxes: %v", err)
	}

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		StripeSessionID: "cs_test_paid_1",
		BoxPrice:        boxPrice,
		ShippingFee:     decimal.NewFromInt(5),
		Products:        reserved,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	addr := &models.ShippingAddress{
		Name:       "Test Recipient",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}

	paid, err := store.MarkOrderPaid(ctx, db, "cs_test_paid_1", "pi_test_1", addr)
	if err != nil {
		t.Fatalf("Mark order paid: %v", err)
	}
	if paid.Status != models.OrderStatusPaid {
		t.Errorf("Expected paid status, got %s", paid.Status)
	}

	// A redelivered completion event finds no pending order to transition.
	_, err = store.MarkOrderPaid(ctx, db, "cs_test_paid_1", "pi_test_1", addr)
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order-not-found on second transition, got: %v", err)
	}

	loaded, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if loaded.ShippingAddress == nil || loaded.ShippingAddress.City != "Springfield" {
		t.Errorf("Shipping address not persisted: %+v", loaded.ShippingAddress)
	}
}

func TestCancelOrderByPaymentIntent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	mustCreateProduct(t, ctx, db, "ORD-006", "Tote Bag", models.RarityCommon,
		decimal.NewFromInt(5), decimal.NewFromInt(8), 5)

	reserved, err := store.ReserveBoxes(ctx, db, defaultPicker(t), 1)
	if err != nil {
		t.Fatalf("Reserve boxes: %v", err)
	}

	order, err := store.CreateOrder(ctx, db, store.CreateOrderRequest{
		StripeSessionID: "cs_test_cancel_1",
		BoxPrice:        boxPrice,
		ShippingFee:     decimal.NewFromInt(5),
		Products:        reserved,
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE orders SET stripe_payment_intent_id = $1 WHERE id = $2`,
		"pi_test_cancel", order.ID)
	if err != nil {
		t.Fatalf("Attach payment intent: %v", err)
	}

	if err := store.CancelOrderByPaymentIntent(ctx, db, "pi_test_cancel"); err != nil {
		t.Fatalf("Cancel order: %v", err)
	}

	loaded, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if loaded.Status != models.OrderStatusCancelled {
		t.Errorf("Expected cancelled status, got %s", loaded.Status)
	}

	err = store.CancelOrderByPaymentIntent(ctx, db, "pi_test_cancel")
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order-not-found on second cancel, got: %v", err)
	}
}
