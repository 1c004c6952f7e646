package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ayush-jadaun/livekitagent/internal/repository"
)

type fakePaymentStore struct {
	calls      []string
	resetGuard time.Duration
	resetDone  bool
	err        error
}

func (f *fakePaymentStore) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakePaymentStore) Promote(ctx context.Context, subID string) error {
	return f.record("promote")
}

func (f *fakePaymentStore) Activate(ctx context.Context, subID string, startedAt *time.Time) error {
	return f.record("activate")
}

func (f *fakePaymentStore) MarkCharged(ctx context.Context, subID string, nextBillingAt *time.Time, resetGuard time.Duration) (bool, error) {
	f.resetGuard = resetGuard
	return f.resetDone, f.record("charged")
}

func (f *fakePaymentStore) MarkFailed(ctx context.Context, subID string) error {
	return f.record("failed")
}

func (f *fakePaymentStore) MarkPastDue(ctx context.Context, subID string) error {
	return f.record("past_due")
}

func (f *fakePaymentStore) Cancel(ctx context.Context, subID string) error {
	return f.record("cancel")
}

func (f *fakePaymentStore) Pause(ctx context.Context, subID string) error {
	return f.record("pause")
}

func (f *fakePaymentStore) Resume(ctx context.Context, subID string) error {
	return f.record("resume")
}

type fakeDeduper struct {
	seen map[string]bool
}

func (f *fakeDeduper) FirstDelivery(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

type fakeArchiver struct {
	archived []string
}

func (f *fakeArchiver) ArchiveWebhook(ctx context.Context, event string, eventID string, payload []byte) error {
	f.archived = append(f.archived, event)
	return nil
}

func newTestReconciler(store *fakePaymentStore, archive *fakeArchiver) (*Reconciler, *fakeDeduper) {
	dedupe := &fakeDeduper{}
	r := NewReconciler(store, dedupe, archive, entitlementCfg(), zerolog.Nop())
	return r, dedupe
}

func subscriptionEvent(event string, subID string) []byte {
	return []byte(`{
		"event": "` + event + `",
		"payload": {"subscription": {"entity": {"id": "` + subID + `", "charge_at": 1756339200}}}
	}`)
}

func TestApplyEventRouting(t *testing.T) {
	cases := []struct {
		event string
		call  string
	}{
		{"subscription.authenticated", "promote"},
		{"subscription.activated", "activate"},
		{"subscription.charged", "charged"},
		{"subscription.pending", "past_due"},
		{"subscription.halted", "failed"},
		{"subscription.cancelled", "cancel"},
		{"subscription.completed", "cancel"},
		{"subscription.paused", "pause"},
		{"subscription.resumed", "resume"},
	}

	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			store := &fakePaymentStore{}
			r, _ := newTestReconciler(store, &fakeArchiver{})

			ack := r.Apply(context.Background(), subscriptionEvent(tc.event, "sub_1"), "")
			require.Equal(t, AckProcessed, ack.Status)
			require.Equal(t, []string{tc.call}, store.calls)
		})
	}
}

func TestApplyUnrecognizedEventAcknowledged(t *testing.T) {
	store := &fakePaymentStore{}
	r, _ := newTestReconciler(store, &fakeArchiver{})

	ack := r.Apply(context.Background(), subscriptionEvent("invoice.paid", "sub_1"), "")
	require.Equal(t, AckIgnored, ack.Status)
	require.Empty(t, store.calls)
}

func TestApplyMissingSubscriptionIDIgnored(t *testing.T) {
	store := &fakePaymentStore{}
	r, _ := newTestReconciler(store, &fakeArchiver{})

	ack := r.Apply(context.Background(), subscriptionEvent("subscription.activated", ""), "")
	require.Equal(t, AckIgnored, ack.Status)
	require.Empty(t, store.calls)
}

func TestApplyUnknownSubscriptionIgnored(t *testing.T) {
	store := &fakePaymentStore{err: repository.ErrPaymentNotFound}
	archive := &fakeArchiver{}
	r, _ := newTestReconciler(store, archive)

	ack := r.Apply(context.Background(), subscriptionEvent("subscription.activated", "sub_ghost"), "")
	require.Equal(t, AckIgnored, ack.Status)
	require.Empty(t, archive.archived)
}

func TestApplyDuplicateDeliverySuppressed(t *testing.T) {
	store := &fakePaymentStore{}
	r, _ := newTestReconciler(store, &fakeArchiver{})

	body := subscriptionEvent("subscription.charged", "sub_1")
	first := r.Apply(context.Background(), body, "evt_1")
	second := r.Apply(context.Background(), body, "evt_1")

	require.Equal(t, AckProcessed, first.Status)
	require.Equal(t, AckDuplicate, second.Status)
	require.Len(t, store.calls, 1)
}

func TestApplyChargedPassesResetGuard(t *testing.T) {
	store := &fakePaymentStore{resetDone: true}
	r, _ := newTestReconciler(store, &fakeArchiver{})

	ack := r.Apply(context.Background(), subscriptionEvent("subscription.charged", "sub_1"), "")
	require.Equal(t, AckProcessed, ack.Status)
	require.Equal(t, 600*time.Hour, store.resetGuard)
}

func TestApplyInternalFailureArchivesPayload(t *testing.T) {
	store := &fakePaymentStore{err: errors.New("deadlock detected")}
	archive := &fakeArchiver{}
	r, _ := newTestReconciler(store, archive)

	ack := r.Apply(context.Background(), subscriptionEvent("subscription.cancelled", "sub_1"), "evt_9")
	require.Equal(t, AckError, ack.Status)
	require.Equal(t, []string{"subscription.cancelled"}, archive.archived)
}

func TestApplyMalformedPayload(t *testing.T) {
	archive := &fakeArchiver{}
	r, _ := newTestReconciler(&fakePaymentStore{}, archive)

	ack := r.Apply(context.Background(), []byte("{not json"), "evt_2")
	require.Equal(t, AckError, ack.Status)
	require.Equal(t, []string{"malformed"}, archive.archived)
}
