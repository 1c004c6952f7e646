package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayush-jadaun/livekitagent/internal/config"
	"github.com/ayush-jadaun/livekitagent/internal/models"
	"github.com/ayush-jadaun/livekitagent/internal/repository"
)

type fakeUserSource struct {
	user models.User
	err  error
}

func (f *fakeUserSource) GetByID(ctx context.Context, id string) (models.User, error) {
	if f.err != nil {
		return models.User{}, f.err
	}
	return f.user, nil
}

type fakePaymentSource struct {
	payment models.Payment
	err     error
}

func (f *fakePaymentSource) LatestUsable(ctx context.Context, userID string) (models.Payment, error) {
	if f.err != nil {
		return models.Payment{}, f.err
	}
	return f.payment, nil
}

func entitlementCfg() config.EntitlementConfig {
	return config.EntitlementConfig{
		TrialSecondsLimit: 150,
		PastDueGrace:      72 * time.Hour,
		UsageResetGuard:   600 * time.Hour,
	}
}

func newTestEvaluator(user models.User, userErr error, payment models.Payment, paymentErr error) *Evaluator {
	return NewEvaluator(
		&fakeUserSource{user: user, err: userErr},
		&fakePaymentSource{payment: payment, err: paymentErr},
		entitlementCfg(),
	)
}

func TestCanStartSessionTrialFresh(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1", TrialSecondsUsed: 0}, nil,
		models.Payment{}, repository.ErrPaymentNotFound,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, ModeTrial, decision.Mode)
	require.Equal(t, 150, decision.TrialSecondsRemaining)
}

func TestCanStartSessionTrialNearlyExhausted(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1", TrialSecondsUsed: 140}, nil,
		models.Payment{}, repository.ErrPaymentNotFound,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 10, decision.TrialSecondsRemaining)
}

func TestCanStartSessionTrialExhausted(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1", TrialSecondsUsed: 170}, nil,
		models.Payment{}, repository.ErrPaymentNotFound,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonTrialExhausted, decision.Reason)
}

func TestCanStartSessionActiveWithQuota(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1", TrialSecondsUsed: 999}, nil,
		models.Payment{
			ID:           "p1",
			Status:       models.PaymentStatusActive,
			SessionLimit: 30,
			SessionUsed:  29,
		}, nil,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, ModePaid, decision.Mode)
	require.NotNil(t, decision.Payment)
	require.Equal(t, "p1", decision.Payment.ID)
}

func TestCanStartSessionQuotaExceeded(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1"}, nil,
		models.Payment{
			Status:       models.PaymentStatusActive,
			SessionLimit: 30,
			SessionUsed:  30,
		}, nil,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonQuotaExceeded, decision.Reason)
}

func TestCanStartSessionPastDueWithinGrace(t *testing.T) {
	nextBilling := time.Now().Add(-24 * time.Hour)
	e := newTestEvaluator(
		models.User{ID: "u1"}, nil,
		models.Payment{
			Status:        models.PaymentStatusPastDue,
			SessionLimit:  30,
			SessionUsed:   5,
			NextBillingAt: &nextBilling,
		}, nil,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, ModePaid, decision.Mode)
}

func TestCanStartSessionPastDueGraceExpired(t *testing.T) {
	nextBilling := time.Now().Add(-96 * time.Hour)
	e := newTestEvaluator(
		models.User{ID: "u1"}, nil,
		models.Payment{
			Status:        models.PaymentStatusPastDue,
			SessionLimit:  30,
			SessionUsed:   5,
			NextBillingAt: &nextBilling,
		}, nil,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonGraceExpired, decision.Reason)
}

func TestCanStartSessionCreatedFallsBackToTrial(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1", TrialSecondsUsed: 10}, nil,
		models.Payment{Status: models.PaymentStatusCreated}, nil,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, ModeTrial, decision.Mode)
}

func TestCanStartSessionCreatedAndTrialExhausted(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1", TrialSecondsUsed: 150}, nil,
		models.Payment{Status: models.PaymentStatusCreated}, nil,
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonPaymentPending, decision.Reason)
}

func TestCanStartSessionStoreFailureDeniesByDefault(t *testing.T) {
	e := newTestEvaluator(
		models.User{ID: "u1"}, nil,
		models.Payment{}, errors.New("connection refused"),
	)

	decision, err := e.CanStartSession(context.Background(), "u1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.False(t, decision.Allowed)
}

func TestCanStartSessionUserReadFailure(t *testing.T) {
	e := newTestEvaluator(
		models.User{}, errors.New("connection refused"),
		models.Payment{}, nil,
	)

	_, err := e.CanStartSession(context.Background(), "u1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
