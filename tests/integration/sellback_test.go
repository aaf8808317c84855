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

func TestSellBack(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createFundedUser(t, ctx, db, "sell@example.com", decimal.NewFromInt(100))

	product := mustCreateProduct(t, ctx, db, "SELL-001", "Retro Console", models.RarityCommon,
		decimal.NewFromInt(8), decimal.NewFromInt(12), 5)

	cfg := store.BoxConfig{Price: boxPrice, Picker: commonOnlyPicker(t)}

	opened, err := store.OpenBox(ctx, db, cfg, user.ID)
	if err != nil {
		t.Fatalf("Open box: %v", err)
	}

	// Reprice the catalog after the open. The credit must come from the
	// snapshot recorded at acquisition, not from the current product row.
	_, err = db.ExecContext(ctx,
		`UPDATE products SET buyback_price = 999 WHERE id = $1`, product.ID)
	if err != nil {
		t.Fatalf("Reprice product: %v", err)
	}

	result, err := store.SellBack(ctx, db, user.ID, opened.InventoryItemID)
	if err != nil {
		t.Fatalf("Sell back: %v", err)
	}

	// 100 - 15 + 8
	if !result.NewBalance.Equal(decimal.NewFromInt(93)) {
		t.Errorf("Expected balance 93, got %s", result.NewBalance)
	}

	item, err := store.GetInventoryItem(ctx, db, opened.InventoryItemID)
	if err != nil {
		t.Fatalf("Get inventory item: %v", err)
	}
	if item.Status != models.ItemStatusSold {
		t.Errorf("Expected item status sold, got %s", item.Status)
	}

	assertLedgerMatchesBalance(t, ctx, db, user.ID)
}

func TestSellBackNotOwned(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	owner := createFundedUser(t, ctx, db, "owner@example.com", decimal.NewFromInt(100))
	other := createFundedUser(t, ctx, db, "other@example.com", decimal.NewFromInt(100))

	mustCreateProduct(t, ctx, db, "SELL-002", "Art Book", models.RarityCommon,
		decimal.NewFromInt(8), decimal.NewFromInt(12), 5)

	cfg := store.BoxConfig{Price: boxPrice, Picker: commonOnlyPicker(t)}

	opened, err := store.OpenBox(ctx, db, cfg, owner.ID)
	if err != nil {
		t.Fatalf("Open box: %v", err)
	}

	_, err = store.SellBack(ctx, db, other.ID, opened.InventoryItemID)
	if !errors.Is(err, database.ErrItemNotOwned) {
		t.Errorf("Expected not-owned error, got: %v", err)
	}

	item, err := store.GetInventoryItem(ctx, db, opened.InventoryItemID)
	if err != nil {
		t.Fatalf("Get inventory item: %v", err)
	}
	if item.Status != models.ItemStatusKept {
		t.Errorf("Item should remain kept, got %s", item.Status)
	}
}

func TestSellBackAlreadySold(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createFundedUser(t, ctx, db, "twice@example.com", decimal.NewFromInt(100))

	mustCreateProduct(t, ctx, db, "SELL-003", "Vinyl Record", models.RarityCommon,
		decimal.NewFromInt(8), decimal.NewFromInt(12), 5)

	cfg := store.BoxConfig{Price: boxPrice, Picker: commonOnlyPicker(t)}

	opened, err := store.OpenBox(ctx, db, cfg, user.ID)
	if err != nil {
		t.Fatalf("Open box: %v", err)
	}

	first, err := store.SellBack(ctx, db, user.ID, opened.InventoryItemID)
	if err != nil {
		t.Fatalf("First sell back: %v", err)
	}

	_, err = store.SellBack(ctx, db, user.ID, opened.InventoryItemID)
	if !errors.Is(err, database.ErrItemAlreadySold) {
		t.Errorf("Expected already-sold error, got: %v", err)
	}

	userAfter, err := store.GetUser(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if !userAfter.AccountBalance.Equal(first.NewBalance) {
		t.Errorf("Balance should remain %s, got %s", first.NewBalance, userAfter.AccountBalance)
	}

	assertLedgerMatchesBalance(t, ctx, db, user.ID)
}

// Concurrent sellbacks of the same item must credit exactly once.
func TestConcurrentSellBack(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user := createFundedUser(t, ctx, db, "concurrent-sell@example.com", decimal.NewFromInt(100))

	mustCreateProduct(t, ctx, db, "SELL-004", "Trading Card", models.RarityCommon,
		decimal.NewFromInt(8), decimal.NewFromInt(12), 5)

	cfg := store.BoxConfig{Price: boxPrice, Picker: commonOnlyPicker(t)}

	opened, err := store.OpenBox(ctx, db, cfg, user.ID)
	if err != nil {
		t.Fatalf("Open box: %v", err)
	}

	concurrency := 5
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := store.SellBack(ctx, db, user.ID, opened.InventoryItemID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	alreadySoldCount := 0

	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrItemAlreadySold):
			alreadySoldCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 1 {
		t.Errorf("Expected exactly 1 successful sellback, got %d", successCount)
	}

	userAfter, err := store.GetUser(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	// 100 - 15 + 8, credited once.
	if !userAfter.AccountBalance.Equal(decimal.NewFromInt(93)) {
		t.Errorf("Expected balance 93, got %s", userAfter.AccountBalance)
	}

	assertLedgerMatchesBalance(t, ctx, db, user.ID)
}
