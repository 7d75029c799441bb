package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	store "plaid-mcp-server/src/db"
	"plaid-mcp-server/src/models"
)

const upsertTransaction = `
	INSERT INTO transactions (user_id, transaction_id, account_id, amount, date, name, merchant_name, category, pending, iso_currency_code, payment_channel, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	ON CONFLICT (user_id, transaction_id) DO UPDATE SET
		account_id = $3,
		amount = $4,
		date = $5,
		name = $6,
		merchant_name = $7,
		category = $8,
		pending = $9,
		iso_currency_code = $10,
		payment_channel = $11,
		updated_at = NOW()
`

// ApplyDelta runs the removal, modification and addition passes in a single
// database transaction.
func (s *PostgresStore) ApplyDelta(ctx context.Context, userID string, delta models.TransactionDelta) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if len(delta.Removed) > 0 {
		_, err := tx.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1 AND transaction_id = ANY($2)`, userID, delta.Removed)
		if err != nil {
			return fmt.Errorf("remove transactions: %w", err)
		}
	}
	if err := upsertTransactions(ctx, tx, userID, delta.Modified); err != nil {
		return fmt.Errorf("apply modified transactions: %w", err)
	}
	if err := upsertTransactions(ctx, tx, userID, delta.Added); err != nil {
		return fmt.Errorf("apply added transactions: %w", err)
	}

	return tx.Commit(ctx)
}

func upsertTransactions(ctx context.Context, tx pgx.Tx, userID string, txns []models.Transaction) error {
	for _, txn := range txns {
		_, err := tx.Exec(ctx, upsertTransaction,
			userID,
			txn.TransactionID,
			txn.AccountID,
			txn.Amount,
			txn.Date,
			txn.Name,
			txn.MerchantName,
			txn.Category,
			txn.Pending,
			txn.Currency,
			txn.PaymentChannel,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	query := `
		SELECT transaction_id, account_id, amount, date, name, merchant_name, category, pending, iso_currency_code, payment_channel
		FROM transactions
		WHERE user_id = $1
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.TransactionID, &t.AccountID, &t.Amount, &t.Date, &t.Name, &t.MerchantName, &t.Category, &t.Pending, &t.Currency, &t.PaymentChannel)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortTransactions(transactions)
	return transactions, nil
}

func (s *PostgresStore) ResetLedger(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE plaid_items SET sync_cursor = NULL WHERE user_id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
