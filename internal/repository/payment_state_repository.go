package repository

import (
	"context"
	"database/sql"

	"github.com/akylbek/payment-system/paypal-checkout/internal/models"
)

type PaymentStateRepository struct {
	db *sql.DB
}

func NewPaymentStateRepository(db *sql.DB) *PaymentStateRepository {
	return &PaymentStateRepository{db: db}
}

func (r *PaymentStateRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS checkout_payments (
			payment_id VARCHAR(255) PRIMARY KEY,
			state VARCHAR(50) NOT NULL,
			previous_state VARCHAR(50) NOT NULL DEFAULT '',
			amount NUMERIC(12, 2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			payer_id VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkout_payments_state ON checkout_payments(state)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *PaymentStateRepository) InsertInitialState(ctx context.Context, paymentID string, state models.PaymentState, amount, currency string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_payments (payment_id, state, previous_state, amount, currency)
		VALUES ($1, $2, '', $3, $4)
		ON CONFLICT (payment_id) DO NOTHING
	`, paymentID, state, amount, currency)
	return err
}

func (r *PaymentStateRepository) TransitionState(ctx context.Context, paymentID string, from, to models.PaymentState) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE checkout_payments
		SET state = $1, previous_state = $2, updated_at = NOW()
		WHERE payment_id = $3 AND state = $4
	`, to, from, paymentID, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PaymentStateRepository) SetPayerID(ctx context.Context, paymentID, payerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE checkout_payments SET payer_id = $1, updated_at = NOW() WHERE payment_id = $2`, payerID, paymentID)
	return err
}

func (r *PaymentStateRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.PaymentStateInfo, error) {
	info := models.PaymentStateInfo{PaymentID: paymentID}
	err := r.db.QueryRowContext(ctx, `
		SELECT state, previous_state, amount::text, currency, payer_id, created_at, updated_at
		FROM checkout_payments WHERE payment_id = $1
	`, paymentID).Scan(&info.State, &info.PreviousState, &info.Amount, &info.Currency, &info.PayerID, &info.CreatedAt, &info.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
