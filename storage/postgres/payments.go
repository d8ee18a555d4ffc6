package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insightbot/subgate/pkg/pg"
	"github.com/insightbot/subgate/svc/payment"
)

// PaymentRepository implements payment.Store. The status transition
// guard runs as a single conditional UPDATE so concurrent webhook
// deliveries for one invoice serialize inside the database.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates the repository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (
			payment_id, subscription_id, group_id, invoice_id,
			amount_usd, currency, months, payment_status,
			confirmations, transaction_hash, expires_at, confirmed_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.SubscriptionID, p.GroupID, p.InvoiceID,
		p.AmountUSD, p.Currency, p.Months, p.Status,
		p.Confirmations, p.TransactionHash, p.ExpiresAt, p.ConfirmedAt,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return payment.ErrAlreadyExists
		}
		return err
	}
	return nil
}

const paymentColumns = `
	payment_id, subscription_id, group_id, invoice_id,
	amount_usd, currency, months, payment_status,
	confirmations, transaction_hash, expires_at, confirmed_at,
	created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.SubscriptionID, &p.GroupID, &p.InvoiceID,
		&p.AmountUSD, &p.Currency, &p.Months, &p.Status,
		&p.Confirmations, &p.TransactionHash, &p.ExpiresAt, &p.ConfirmedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, payment.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*payment.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1`, invoiceID))
}

func (r *PaymentRepository) Transition(ctx context.Context, invoiceID string, update payment.StatusUpdate) (*payment.Payment, bool, error) {
	// Terminal statuses are excluded and lower-precedence updates are
	// filtered by ranking the stored status in SQL against the new one.
	row := r.pool.QueryRow(ctx, `
		UPDATE payments SET
			payment_status = $2,
			confirmations = $3,
			transaction_hash = CASE WHEN $4 <> '' THEN $4 ELSE transaction_hash END,
			confirmed_at = COALESCE($5, confirmed_at),
			updated_at = now()
		WHERE invoice_id = $1
		  AND payment_status NOT IN ('finished', 'failed', 'expired', 'refunded')
		  AND (CASE payment_status
		       WHEN 'confirming' THEN 1
		       WHEN 'confirmed' THEN 2
		       WHEN 'sending' THEN 3
		       ELSE 0 END) <= $6
		RETURNING `+paymentColumns,
		invoiceID, update.Status, update.Confirmations,
		update.TransactionHash, update.ConfirmedAt, update.Status.Precedence())

	p, err := scanPayment(row)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, payment.ErrNotFound) {
		return nil, false, err
	}

	// Nothing matched: either the invoice is unknown or the guard held.
	current, err := r.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}
