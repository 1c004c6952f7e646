package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayush-jadaun/livekitagent/internal/config"
	"github.com/ayush-jadaun/livekitagent/internal/repository"
)

// Ack is the reconciler's answer for one delivery. The webhook endpoint
// always acknowledges with 2xx once the payload is authenticated, so the
// provider does not retry forever; Status tells what actually happened.
type Ack struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
}

const (
	AckProcessed = "processed"
	AckIgnored   = "ignored"
	AckDuplicate = "duplicate"
	AckError     = "error"
)

type reconcilerPaymentStore interface {
	Promote(ctx context.Context, subID string) error
	Activate(ctx context.Context, subID string, startedAt *time.Time) error
	MarkCharged(ctx context.Context, subID string, nextBillingAt *time.Time, resetGuard time.Duration) (bool, error)
	MarkFailed(ctx context.Context, subID string) error
	MarkPastDue(ctx context.Context, subID string) error
	Cancel(ctx context.Context, subID string) error
	Pause(ctx context.Context, subID string) error
	Resume(ctx context.Context, subID string) error
}

type eventDeduper interface {
	FirstDelivery(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

type webhookArchiver interface {
	ArchiveWebhook(ctx context.Context, event string, eventID string, payload []byte) error
}

// Reconciler applies payment-provider webhook events to payment rows.
// Deliveries can repeat and arrive out of order; every handler is safe
// to re-run and unknown subscriptions are acknowledged but ignored.
type Reconciler struct {
	store   reconcilerPaymentStore
	dedupe  eventDeduper
	archive webhookArchiver
	cfg     config.EntitlementConfig
	log     zerolog.Logger
}

func NewReconciler(
	store reconcilerPaymentStore,
	dedupe eventDeduper,
	archive webhookArchiver,
	cfg config.EntitlementConfig,
	log zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		store:   store,
		dedupe:  dedupe,
		archive: archive,
		cfg:     cfg,
		log:     log,
	}
}

const dedupeWindow = 48 * time.Hour

type subscriptionEntity struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	StartAt    *int64 `json:"start_at"`
	ChargeAt   *int64 `json:"charge_at"`
	CurrentEnd *int64 `json:"current_end"`
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// Apply reconciles one authenticated delivery. It never returns an
// error to the caller: internal failures are logged, the raw payload is
// archived for manual reconciliation, and the delivery is acknowledged.
func (r *Reconciler) Apply(ctx context.Context, body []byte, eventID string) Ack {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		r.log.Error().Err(err).Msg("webhook payload unmarshal failed")
		r.archivePayload(ctx, "malformed", eventID, body)
		return Ack{Status: AckError}
	}

	if eventID != "" && r.dedupe != nil {
		first, err := r.dedupe.FirstDelivery(ctx, eventID, dedupeWindow)
		if err != nil {
			// Dedupe is an optimization on top of idempotent handlers;
			// a cache failure must not drop the event.
			r.log.Warn().Err(err).Str("event_id", eventID).Msg("webhook dedupe check failed")
		} else if !first {
			r.log.Debug().Str("event_id", eventID).Str("event", envelope.Event).Msg("duplicate webhook delivery")
			return Ack{Status: AckDuplicate, Event: envelope.Event}
		}
	}

	entity := envelope.Payload.Subscription.Entity
	applied, err := r.dispatch(ctx, envelope.Event, entity)
	switch {
	case err == nil && !applied:
		return Ack{Status: AckIgnored, Event: envelope.Event}
	case errors.Is(err, repository.ErrPaymentNotFound):
		r.log.Warn().
			Str("event", envelope.Event).
			Str("subscription_id", entity.ID).
			Msg("webhook for unknown subscription")
		return Ack{Status: AckIgnored, Event: envelope.Event}
	case err != nil:
		r.log.Error().Err(err).
			Str("event", envelope.Event).
			Str("subscription_id", entity.ID).
			Msg("webhook apply failed")
		r.archivePayload(ctx, envelope.Event, eventID, body)
		return Ack{Status: AckError, Event: envelope.Event}
	}

	return Ack{Status: AckProcessed, Event: envelope.Event}
}

// dispatch routes one event to its state transition. It returns
// applied=false for events this service does not act on; those are
// acknowledged without touching any row.
func (r *Reconciler) dispatch(ctx context.Context, event string, entity subscriptionEntity) (bool, error) {
	switch event {
	case "subscription.authenticated",
		"subscription.activated",
		"subscription.charged",
		"subscription.pending",
		"subscription.halted",
		"subscription.cancelled",
		"subscription.completed",
		"subscription.paused",
		"subscription.resumed":
		if entity.ID == "" {
			r.log.Warn().Str("event", event).Msg("webhook missing subscription id")
			return false, nil
		}
	default:
		r.log.Debug().Str("event", event).Msg("unhandled webhook event")
		return false, nil
	}

	switch event {
	case "subscription.authenticated":
		// Promotes only rows still in "created"; later deliveries for
		// already-active rows change nothing.
		return true, r.store.Promote(ctx, entity.ID)

	case "subscription.activated":
		return true, r.store.Activate(ctx, entity.ID, unixTime(entity.StartAt))

	case "subscription.charged":
		reset, err := r.store.MarkCharged(ctx, entity.ID, unixTime(entity.ChargeAt), r.cfg.UsageResetGuard)
		if err != nil {
			return true, err
		}
		if !reset {
			r.log.Info().
				Str("subscription_id", entity.ID).
				Msg("charged delivery within reset guard, usage kept")
		}
		return true, nil

	case "subscription.pending":
		return true, r.store.MarkPastDue(ctx, entity.ID)

	case "subscription.halted":
		return true, r.store.MarkFailed(ctx, entity.ID)

	case "subscription.cancelled", "subscription.completed":
		return true, r.store.Cancel(ctx, entity.ID)

	case "subscription.paused":
		return true, r.store.Pause(ctx, entity.ID)

	case "subscription.resumed":
		return true, r.store.Resume(ctx, entity.ID)
	}
	return false, nil
}

func (r *Reconciler) archivePayload(ctx context.Context, event string, eventID string, body []byte) {
	if r.archive == nil {
		return
	}
	if eventID == "" {
		eventID = "no-event-id"
	}
	if err := r.archive.ArchiveWebhook(ctx, event, eventID, body); err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("webhook archive failed")
	}
}

func unixTime(ts *int64) *time.Time {
	if ts == nil || *ts == 0 {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}
