package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pompom/go-box-store/internal/database"
	"github.com/pompom/go-box-store/internal/models"
	"github.com/shopspring/decimal"
)

func CreateUser(ctx context.Context, db *sql.DB, email, name string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name, account_balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		RETURNING id, email, name, account_balance, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, email, name).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AccountBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, name, account_balance, created_at, updated_at
		FROM users
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AccountBalance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// lockBalance takes the row lock that serializes every balance
// check-and-mutate for a user. Two concurrent box opens cannot both pass the
// balance check against a stale value while one of them holds this lock.
func lockBalance(ctx context.Context, tx *sql.Tx, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := tx.QueryRowContext(ctx,
		`SELECT account_balance FROM users WHERE id = $1 FOR UPDATE`,
		userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Decimal{}, database.ErrUserNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("lock user balance: %w", err)
	}

	return balance, nil
}

// adjustBalance applies a signed delta to a locked balance row and returns
// the resulting balance. Callers must hold the FOR UPDATE lock via
// lockBalance first.
func adjustBalance(ctx context.Context, tx *sql.Tx, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal

	err := tx.QueryRowContext(ctx,
		`UPDATE users
		 SET account_balance = account_balance + $1,
		     updated_at = NOW()
		 WHERE id = $2
		 RETURNING account_balance`,
		delta, userID).Scan(&newBalance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("adjust balance: %w", err)
	}

	return newBalance, nil
}
