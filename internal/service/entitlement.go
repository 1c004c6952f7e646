package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayush-jadaun/livekitagent/internal/config"
	"github.com/ayush-jadaun/livekitagent/internal/models"
	"github.com/ayush-jadaun/livekitagent/internal/repository"
)

// ErrStoreUnavailable marks entitlement reads that failed at the store.
// The evaluator never grants access on error.
var ErrStoreUnavailable = errors.New("store unavailable")

type EntitlementMode string

const (
	ModeTrial EntitlementMode = "trial"
	ModePaid  EntitlementMode = "paid"
)

const (
	ReasonOK             = "ok"
	ReasonTrialExhausted = "trial_exhausted"
	ReasonQuotaExceeded  = "session_quota_exceeded"
	ReasonGraceExpired   = "grace_period_expired"
	ReasonPaymentPending = "payment_pending"
)

// Decision is the outcome of an entitlement check. Payment is set when
// the grant is paid, so the caller can decrement that row's quota in the
// same transaction that creates the session.
type Decision struct {
	Allowed               bool
	Mode                  EntitlementMode
	Reason                string
	TrialSecondsRemaining int
	Payment               *models.Payment
}

type entitlementUserSource interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type entitlementPaymentSource interface {
	LatestUsable(ctx context.Context, userID string) (models.Payment, error)
}

// Evaluator decides whether a user may start a session. It is read-only;
// quota decrements and trial accrual belong to the session transactions.
type Evaluator struct {
	users    entitlementUserSource
	payments entitlementPaymentSource
	cfg      config.EntitlementConfig
	now      func() time.Time
}

func NewEvaluator(users entitlementUserSource, payments entitlementPaymentSource, cfg config.EntitlementConfig) *Evaluator {
	return &Evaluator{
		users:    users,
		payments: payments,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (e *Evaluator) CanStartSession(ctx context.Context, userID string) (Decision, error) {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Decision{}, err
		}
		return Decision{}, fmt.Errorf("%w: read user: %v", ErrStoreUnavailable, err)
	}

	paymentPending := false

	payment, err := e.payments.LatestUsable(ctx, userID)
	switch {
	case err == nil:
		switch payment.Status {
		case models.PaymentStatusActive:
			return e.paidDecision(payment), nil
		case models.PaymentStatusPastDue:
			if e.withinGrace(payment) {
				return e.paidDecision(payment), nil
			}
			return Decision{Mode: ModePaid, Reason: ReasonGraceExpired}, nil
		case models.PaymentStatusCreated:
			// Checkout initiated but the provider has not confirmed
			// payment yet; the user keeps trial access meanwhile.
			paymentPending = true
		}
	case errors.Is(err, repository.ErrPaymentNotFound):
		// No payment history, trial only.
	default:
		return Decision{}, fmt.Errorf("%w: read payment: %v", ErrStoreUnavailable, err)
	}

	remaining := e.cfg.TrialSecondsLimit - user.TrialSecondsUsed
	if remaining > 0 {
		return Decision{
			Allowed:               true,
			Mode:                  ModeTrial,
			Reason:                ReasonOK,
			TrialSecondsRemaining: remaining,
		}, nil
	}

	reason := ReasonTrialExhausted
	if paymentPending {
		reason = ReasonPaymentPending
	}
	return Decision{Mode: ModeTrial, Reason: reason}, nil
}

func (e *Evaluator) paidDecision(payment models.Payment) Decision {
	if payment.SessionUsed >= payment.SessionLimit {
		return Decision{Mode: ModePaid, Reason: ReasonQuotaExceeded}
	}
	p := payment
	return Decision{
		Allowed: true,
		Mode:    ModePaid,
		Reason:  ReasonOK,
		Payment: &p,
	}
}

func (e *Evaluator) withinGrace(payment models.Payment) bool {
	if payment.NextBillingAt == nil {
		return false
	}
	return e.now().Before(payment.NextBillingAt.Add(e.cfg.PastDueGrace))
}
