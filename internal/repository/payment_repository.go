package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush-jadaun/livekitagent/internal/models"
)

var ErrPaymentNotFound = errors.New("payment not found")

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `
	id, user_id, plan_id, razorpay_customer_id, razorpay_subscription_id,
	status, session_limit, session_used, started_at, ended_at,
	next_billing_at, last_reset_at, created_at, updated_at
`

func scanPayment(row pgx.Row) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PlanID,
		&p.RazorpayCustomerID,
		&p.RazorpaySubID,
		&p.Status,
		&p.SessionLimit,
		&p.SessionUsed,
		&p.StartedAt,
		&p.EndedAt,
		&p.NextBillingAt,
		&p.LastResetAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Payment{}, ErrPaymentNotFound
	}
	return p, err
}

func (r *PaymentRepository) Create(ctx context.Context, p models.Payment) error {
	const query = `
		INSERT INTO payments (
			id, user_id, plan_id, razorpay_customer_id, razorpay_subscription_id,
			status, session_limit, session_used, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.PlanID,
		p.RazorpayCustomerID,
		p.RazorpaySubID,
		p.Status,
		p.SessionLimit,
	)
	return err
}

// LatestUsable returns the user's most recent payment row that can still
// influence entitlement: active, past_due or created.
func (r *PaymentRepository) LatestUsable(ctx context.Context, userID string) (models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1 AND status IN ('active', 'past_due', 'created')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(r.pool.QueryRow(ctx, query, userID))
}

// LatestByUser returns the most recent payment row regardless of status.
func (r *PaymentRepository) LatestByUser(ctx context.Context, userID string) (models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(r.pool.QueryRow(ctx, query, userID))
}

func (r *PaymentRepository) GetBySubscriptionID(ctx context.Context, subID string) (models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE razorpay_subscription_id = $1
	`
	return scanPayment(r.pool.QueryRow(ctx, query, subID))
}

// Promote moves a created subscription to active. Rows in any other
// status are untouched, which makes duplicate authenticated deliveries
// harmless.
func (r *PaymentRepository) Promote(ctx context.Context, subID string) error {
	const query = `
		UPDATE payments
		SET status = 'active', started_at = COALESCE(started_at, NOW()), updated_at = NOW()
		WHERE razorpay_subscription_id = $1 AND status = 'created'
	`
	_, err := r.pool.Exec(ctx, query, subID)
	return err
}

// Activate sets the subscription active with the provider's start time
// (or now when the payload carries none).
func (r *PaymentRepository) Activate(ctx context.Context, subID string, startedAt *time.Time) error {
	const query = `
		UPDATE payments
		SET status = 'active',
		    started_at = COALESCE($2, started_at, NOW()),
		    updated_at = NOW()
		WHERE razorpay_subscription_id = $1
	`
	return r.execOnSub(ctx, query, subID, startedAt)
}

// MarkCharged records a successful billing cycle: the subscription is
// active, the next billing time advances, and the usage counter resets.
// A reset is applied at most once per resetGuard window, so a retried
// delivery cannot zero the counter twice.
func (r *PaymentRepository) MarkCharged(ctx context.Context, subID string, nextBillingAt *time.Time, resetGuard time.Duration) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const charge = `
		UPDATE payments
		SET status = 'active',
		    next_billing_at = COALESCE($2, next_billing_at),
		    updated_at = NOW()
		WHERE razorpay_subscription_id = $1
	`
	cmd, err := tx.Exec(ctx, charge, subID, nextBillingAt)
	if err != nil {
		return false, fmt.Errorf("mark charged: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return false, ErrPaymentNotFound
	}

	const reset = `
		UPDATE payments
		SET session_used = 0, last_reset_at = NOW(), updated_at = NOW()
		WHERE razorpay_subscription_id = $1
		  AND (last_reset_at IS NULL OR last_reset_at <= NOW() - make_interval(secs => $2))
	`
	resetCmd, err := tx.Exec(ctx, reset, subID, resetGuard.Seconds())
	if err != nil {
		return false, fmt.Errorf("reset usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return resetCmd.RowsAffected() > 0, nil
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, subID string) error {
	const query = `
		UPDATE payments SET status = 'failed', updated_at = NOW()
		WHERE razorpay_subscription_id = $1
	`
	return r.execOnSub(ctx, query, subID)
}

func (r *PaymentRepository) MarkPastDue(ctx context.Context, subID string) error {
	const query = `
		UPDATE payments SET status = 'past_due', updated_at = NOW()
		WHERE razorpay_subscription_id = $1
	`
	return r.execOnSub(ctx, query, subID)
}

// Cancel stamps the end time once; repeated cancelled deliveries keep
// the first timestamp.
func (r *PaymentRepository) Cancel(ctx context.Context, subID string) error {
	const query = `
		UPDATE payments
		SET status = 'cancelled', ended_at = COALESCE(ended_at, NOW()), updated_at = NOW()
		WHERE razorpay_subscription_id = $1
	`
	return r.execOnSub(ctx, query, subID)
}

func (r *PaymentRepository) Pause(ctx context.Context, subID string) error {
	const query = `
		UPDATE payments SET status = 'paused', updated_at = NOW()
		WHERE razorpay_subscription_id = $1
	`
	return r.execOnSub(ctx, query, subID)
}

func (r *PaymentRepository) Resume(ctx context.Context, subID string) error {
	const query = `
		UPDATE payments SET status = 'active', updated_at = NOW()
		WHERE razorpay_subscription_id = $1
	`
	return r.execOnSub(ctx, query, subID)
}

func (r *PaymentRepository) execOnSub(ctx context.Context, query string, subID string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, append([]any{subID}, args...)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
