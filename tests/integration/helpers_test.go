package integration

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"testing"

	"github.com/pompom/go-box-store/internal/models"
	"github.com/pompom/go-box-store/internal/rarity"
	"github.com/pompom/go-box-store/internal/store"
	"github.com/shopspring/decimal"
)

var boxPrice = decimal.NewFromInt(15)

func testPicker(t *testing.T, weights rarity.Weights, seed int64) *rarity.Picker {
	t.Helper()

	picker, err := rarity.NewPicker(weights, rand.NewSource(seed))
	if err != nil {
		t.Fatalf("New picker: %v", err)
	}
	return picker
}

// commonOnlyPicker forces every draw to the common tier, which makes the
// selected product predictable when a test seeds a single common product.
func commonOnlyPicker(t *testing.T) *rarity.Picker {
	return testPicker(t, rarity.Weights{Common: 100}, 1)
}

func defaultPicker(t *testing.T) *rarity.Picker {
	return testPicker(t, rarity.Weights{Common: 73, Uncommon: 20, Rare: 6, Ultra: 1}, 1)
}

// createFundedUser creates a user and credits the given starting balance
// through the regular top-up path, so the ledger stays consistent with the
// balance from the first write on.
func createFundedUser(t *testing.T, ctx context.Context, db *sql.DB, email string, amount decimal.Decimal) *models.User {
	t.Helper()

	user, err := store.CreateUser(ctx, db, email, "Test User")
	if err != nil {
		t.Fatalf("Create user %s: %v", email, err)
	}

	if amount.IsPositive() {
		if _, err := store.CreditBalance(ctx, db, user.ID, amount, fmt.Sprintf("cs_test_fund_%s", email)); err != nil {
			t.Fatalf("Fund user %s: %v", email, err)
		}
	}

	user, err = store.GetUser(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Reload user %s: %v", email, err)
	}
	return user
}

func mustCreateProduct(t *testing.T, ctx context.Context, db *sql.DB, sku, name string, tier models.Rarity, buyback, resale decimal.Decimal, stock int) *models.Product {
	t.Helper()

	product, err := store.CreateProduct(ctx, db, sku, name, tier, buyback, resale, stock)
	if err != nil {
		t.Fatalf("Create product %s: %v", sku, err)
	}
	return product
}

func assertLedgerMatchesBalance(t *testing.T, ctx context.Context, db *sql.DB, userID int64) {
	t.Helper()

	user, err := store.GetUser(ctx, db, userID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}

	sum, err := store.SumTransactions(ctx, db, userID)
	if err != nil {
		t.Fatalf("Sum transactions: %v", err)
	}

	if !sum.Equal(user.AccountBalance) {
		t.Errorf("Ledger sum %s does not match balance %s", sum, user.AccountBalance)
	}
}

func countInventoryItems(t *testing.T, ctx context.Context, db *sql.DB, userID int64) int {
	t.Helper()

	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_inventory WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		t.Fatalf("Count inventory items: %v", err)
	}
	return count
}
