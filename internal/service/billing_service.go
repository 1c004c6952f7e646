package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ayush-jadaun/livekitagent/internal/ids"
	"github.com/ayush-jadaun/livekitagent/internal/models"
	"github.com/ayush-jadaun/livekitagent/internal/payments"
	"github.com/ayush-jadaun/livekitagent/internal/repository"
)

// ErrUpstream marks payment-provider calls that failed; handlers map it
// to a 500 without leaking the provider response.
var ErrUpstream = errors.New("payment provider error")

// ErrNoCancellableSubscription is returned when cancel is requested but
// the latest payment row cannot be cancelled.
var ErrNoCancellableSubscription = errors.New("no cancellable subscription")

type SubscribeResult struct {
	Payment     models.Payment
	CheckoutURL string
}

// BillingService drives subscription checkout against the payment
// provider. Status transitions after "created" come exclusively from
// webhooks, so this service never promotes rows itself.
type BillingService struct {
	users    *repository.UserRepository
	plans    *repository.PlanRepository
	payments *repository.PaymentRepository
	provider *payments.Client
	log      zerolog.Logger
}

func NewBillingService(
	users *repository.UserRepository,
	plans *repository.PlanRepository,
	paymentRepo *repository.PaymentRepository,
	provider *payments.Client,
	log zerolog.Logger,
) *BillingService {
	return &BillingService{
		users:    users,
		plans:    plans,
		payments: paymentRepo,
		provider: provider,
		log:      log,
	}
}

// Subscribe creates the provider customer and subscription and records a
// payment row in status "created". Entitlement stays trial-based until a
// webhook confirms payment.
func (s *BillingService) Subscribe(ctx context.Context, userID string, planID string) (SubscribeResult, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return SubscribeResult{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return SubscribeResult{}, err
	}

	customerID, err := s.provider.EnsureCustomer(userID, user.Name, "")
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("provider customer create failed")
		return SubscribeResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	sub, err := s.provider.CreateSubscription(plan.RazorpayPlanID, customerID, 12)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("plan_id", planID).Msg("provider subscription create failed")
		return SubscribeResult{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	payment := models.Payment{
		ID:                 ids.New(),
		UserID:             userID,
		PlanID:             &plan.ID,
		RazorpayCustomerID: customerID,
		RazorpaySubID:      sub.ID,
		Status:             models.PaymentStatusCreated,
		SessionLimit:       plan.SessionLimit,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return SubscribeResult{}, fmt.Errorf("record payment: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("subscription_id", sub.ID).
		Str("plan", plan.Name).
		Msg("subscription checkout created")

	return SubscribeResult{Payment: payment, CheckoutURL: sub.ShortURL}, nil
}

func (s *BillingService) Current(ctx context.Context, userID string) (models.Payment, error) {
	return s.payments.LatestByUser(ctx, userID)
}

// CancelCurrent requests cancellation at the provider. The row flips to
// cancelled when the provider's webhook lands, not here.
func (s *BillingService) CancelCurrent(ctx context.Context, userID string) error {
	payment, err := s.payments.LatestByUser(ctx, userID)
	if err != nil {
		return err
	}

	switch payment.Status {
	case models.PaymentStatusActive, models.PaymentStatusPastDue, models.PaymentStatusPaused:
	default:
		return ErrNoCancellableSubscription
	}

	if err := s.provider.CancelSubscription(payment.RazorpaySubID); err != nil {
		s.log.Error().Err(err).Str("subscription_id", payment.RazorpaySubID).Msg("provider cancel failed")
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

func (s *BillingService) Plans(ctx context.Context) ([]models.Plan, error) {
	return s.plans.List(ctx)
}
