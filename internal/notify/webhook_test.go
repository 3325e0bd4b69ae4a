package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

func fixedUUID(b byte) pgtype.UUID {
	var id pgtype.UUID
	id.Bytes[15] = b
	id.Valid = true
	return id
}

type fakeNotifyStore struct {
	deliveries map[[16]byte]store.Delivery
	events     map[[16]byte]store.Event
	nextID     byte
}

func newFakeNotifyStore() *fakeNotifyStore {
	return &fakeNotifyStore{
		deliveries: map[[16]byte]store.Delivery{},
		events:     map[[16]byte]store.Event{},
		nextID:     0x40,
	}
}

func (f *fakeNotifyStore) GetDelivery(_ context.Context, id pgtype.UUID) (store.Delivery, error) {
	d, ok := f.deliveries[id.Bytes]
	if !ok {
		return store.Delivery{}, pgx.ErrNoRows
	}
	return d, nil
}

func (f *fakeNotifyStore) GetEvent(_ context.Context, id pgtype.UUID) (store.Event, error) {
	e, ok := f.events[id.Bytes]
	if !ok {
		return store.Event{}, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeNotifyStore) MarkDelivery(_ context.Context, id pgtype.UUID, status string, lastError *string) error {
	d, ok := f.deliveries[id.Bytes]
	if !ok {
		return pgx.ErrNoRows
	}
	d.Status = status
	d.Attempts++
	if lastError != nil {
		d.LastError = pgtype.Text{String: *lastError, Valid: true}
	} else {
		d.LastError = pgtype.Text{}
	}
	f.deliveries[id.Bytes] = d
	return nil
}

func (f *fakeNotifyStore) InsertDelivery(_ context.Context, eventID pgtype.UUID, target string) (pgtype.UUID, error) {
	f.nextID++
	id := fixedUUID(f.nextID)
	f.deliveries[id.Bytes] = store.Delivery{
		ID:      id,
		EventID: eventID,
		Target:  target,
		Status:  DeliveryStatusPending,
	}
	return id, nil
}

func (f *fakeNotifyStore) ListDeadLetters(_ context.Context, limit, offset int32) ([]store.Delivery, error) {
	var out []store.Delivery
	for _, d := range f.deliveries {
		if d.Status == DeliveryStatusDead {
			out = append(out, d)
		}
	}
	return out, nil
}

func seedDelivery(f *fakeNotifyStore, target string, attempts int32) store.Delivery {
	eventID := fixedUUID(1)
	f.events[eventID.Bytes] = store.Event{
		ID:      eventID,
		Topic:   events.TopicOrderPaid,
		Payload: []byte(`{"orderId":"abc","email":"cliente@example.com"}`),
	}
	deliveryID := fixedUUID(2)
	f.deliveries[deliveryID.Bytes] = store.Delivery{
		ID:       deliveryID,
		EventID:  eventID,
		Target:   target,
		Status:   DeliveryStatusPending,
		Attempts: attempts,
	}
	return f.deliveries[deliveryID.Bytes]
}

func TestDeliverByIDMarksDelivered(t *testing.T) {
	var gotSignature atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature.Store(r.Header.Get("X-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFakeNotifyStore()
	delivery := seedDelivery(f, srv.URL, 0)
	d := &Deliverer{Q: f, Secret: "secreto", MaxAttempts: 6}

	err := d.DeliverByID(context.Background(), store.UUIDString(delivery.ID))
	require.NoError(t, err)
	require.Equal(t, DeliveryStatusDelivered, f.deliveries[delivery.ID.Bytes].Status)
	require.NotEmpty(t, gotSignature.Load())
}

func TestDeliverByIDFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFakeNotifyStore()
	delivery := seedDelivery(f, srv.URL, 0)
	d := &Deliverer{Q: f, Secret: "secreto", MaxAttempts: 6}

	err := d.DeliverByID(context.Background(), store.UUIDString(delivery.ID))
	require.ErrorIs(t, err, ErrDeliveryFailed)
	require.Equal(t, DeliveryStatusFailed, f.deliveries[delivery.ID.Bytes].Status)
}

func TestDeliverByIDDeadLettersAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFakeNotifyStore()
	delivery := seedDelivery(f, srv.URL, 5)
	d := &Deliverer{Q: f, Secret: "secreto", MaxAttempts: 6}

	err := d.DeliverByID(context.Background(), store.UUIDString(delivery.ID))
	require.NoError(t, err)
	require.Equal(t, DeliveryStatusDead, f.deliveries[delivery.ID.Bytes].Status)
}

func TestDeliverByIDSkipsDeliveredRows(t *testing.T) {
	f := newFakeNotifyStore()
	delivery := seedDelivery(f, "https://example.com/hook", 1)
	stored := f.deliveries[delivery.ID.Bytes]
	stored.Status = DeliveryStatusDelivered
	f.deliveries[delivery.ID.Bytes] = stored
	d := &Deliverer{Q: f, Secret: "secreto"}

	err := d.DeliverByID(context.Background(), store.UUIDString(delivery.ID))
	require.NoError(t, err)
	require.Equal(t, int32(1), f.deliveries[delivery.ID.Bytes].Attempts)
}

func TestSchedulerRecordsDeliveryPerTarget(t *testing.T) {
	f := newFakeNotifyStore()
	s := &Scheduler{Q: f, Targets: []string{"https://a.example/hook", "https://b.example/hook"}}

	err := s.Schedule(context.Background(), events.Event{ID: fixedUUID(9), Topic: events.TopicOrderCreated})
	require.NoError(t, err)

	targets := map[string]bool{}
	for _, d := range f.deliveries {
		targets[d.Target] = true
		require.Equal(t, DeliveryStatusPending, d.Status)
	}
	require.Len(t, targets, 2)
}

func TestComputeSignatureVerifiable(t *testing.T) {
	body := []byte(`{"hello":"mundo"}`)
	sig := ComputeSignature("secreto", 1724800000, "evt-1", body)
	require.Equal(t, ComputeSignature("secreto", 1724800000, "evt-1", body), sig)
	require.NotEqual(t, ComputeSignature("otro", 1724800000, "evt-1", body), sig)
	require.Len(t, sig, 64)
	_, err := strconv.ParseUint(sig[:16], 16, 64)
	require.NoError(t, err)
}

func TestEmailNotifierSendsToPayloadRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := EmailNotifier{Mail: mail, Enabled: true}

	err := n.Notify(context.Background(), events.Event{
		Topic:   events.TopicOrderPaid,
		Payload: []byte(`{"orderId":"abc","email":"cliente@example.com"}`),
	})
	require.NoError(t, err)
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "cliente@example.com", mail.Outbox[0].To)
	require.Equal(t, "Pago confirmado", mail.Outbox[0].Subject)
}

func TestEmailNotifierSkipsWithoutRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := EmailNotifier{Mail: mail, Enabled: true}

	err := n.Notify(context.Background(), events.Event{
		Topic:   events.TopicOrderCreated,
		Payload: []byte(`{"orderId":"abc"}`),
	})
	require.NoError(t, err)
	require.Empty(t, mail.Outbox)
}
