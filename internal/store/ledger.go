package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
	"github.com/shopspring/decimal"
)

// appendTransaction writes one ledger entry. The ledger is append-only:
// nothing in this package updates or deletes balance_transactions rows.
func appendTransaction(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, txType, description string, stripeSessionID *string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO balance_transactions (user_id, amount, type, description, stripe_session_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		userID, amount, txType, description, stripeSessionID)
	if err != nil {
		return fmt.Errorf("append balance transaction: %w", err)
	}
	return nil
}

type CreditResult struct {
	NewBalance decimal.Decimal
	Duplicate  bool
}

// CreditBalance applies a top-up credit exactly once per Stripe session.
// Redelivery of the same payment event finds the recorded session id and
// returns the current balance without writing anything. The unique index on
// stripe_session_id backstops the check: if two deliveries race past it,
// one insert fails with a unique violation and is absorbed as a duplicate.
func CreditBalance(ctx context.Context, db *sql.DB, userID int64, amount decimal.Decimal, stripeSessionID string) (*CreditResult, error) {
	var result *CreditResult

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM balance_transactions WHERE stripe_session_id = $1)`,
			stripeSessionID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check session processed: %w", err)
		}

		if exists {
			balance, err := currentBalance(ctx, tx, userID)
			if err != nil {
				return err
			}
			result = &CreditResult{NewBalance: balance, Duplicate: true}
			return nil
		}

		if _, err := lockBalance(ctx, tx, userID); err != nil {
			return err
		}

		newBalance, err := adjustBalance(ctx, tx, userID, amount)
		if err != nil {
			return err
		}

		err = appendTransaction(ctx, tx, userID, amount, models.TransactionTypeTopup,
			fmt.Sprintf("Added $%s to account balance", amount.StringFixed(2)), &stripeSessionID)
		if err != nil {
			return err
		}

		result = &CreditResult{NewBalance: newBalance}
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err, "balance_transactions_stripe_session_id_key") {
			// Lost the race against a concurrent delivery of the same event.
			user, getErr := GetUser(ctx, db, userID)
			if getErr != nil {
				return nil, getErr
			}
			return &CreditResult{NewBalance: user.AccountBalance, Duplicate: true}, nil
		}
		return nil, err
	}

	return result, nil
}

func currentBalance(ctx context.Context, tx *sql.Tx, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT account_balance FROM users WHERE id = $1`,
		userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Decimal{}, database.ErrUserNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// SumTransactions reconciles the ledger: the returned sum must always equal
// the user's account_balance.
func SumTransactions(ctx context.Context, db *sql.DB, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM balance_transactions WHERE user_id = $1`,
		userID).Scan(&sum)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

func ListTransactionsCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, user_id, amount, type, description, stripe_session_id, created_at
		FROM balance_transactions
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.BalanceTransaction
	for rows.Next() {
		var txn models.BalanceTransaction
		err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Amount,
			&txn.Type,
			&txn.Description,
			&txn.StripeSessionID,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(transactions) > limit
	if hasMore {
		transactions = transactions[:limit]
	}

	var nextCursor string
	if hasMore && len(transactions) > 0 {
		last := transactions[len(transactions)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      transactions,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
