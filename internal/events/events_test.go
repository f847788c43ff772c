package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishOrderCreated_KeysByOrderID(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "storefront.orders", logging.NewNop())

	uid := int64(3)
	order := &models.Order{ID: 42, UserID: &uid, Total: 2500, PaymentMethod: models.PaymentMethodCash}
	require.NoError(t, p.PublishOrderCreated(context.Background(), order))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, string(EventTypeOrderCreated), header(w.msgs[0], "event_type"))

	var event OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, int64(42), event.OrderID)
	assert.Equal(t, "efectivo", event.Metadata["payment_method"])
	assert.NotEmpty(t, event.ID)
}

func TestPublishStatusChanged_OneEventPerAxis(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "storefront.orders", logging.NewNop())

	order := &models.Order{ID: 7, Status: models.FulfillmentApproved, PaymentStatus: models.PaymentApproved}
	change := models.StatusChange{
		PreviousStatus:        models.FulfillmentPending,
		PreviousPaymentStatus: models.PaymentPending,
		FulfillmentChanged:    true,
		PaymentChanged:        true,
	}
	require.NoError(t, p.PublishStatusChanged(context.Background(), order, change))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, string(EventTypeOrderPaymentStatusChanged), header(w.msgs[0], "event_type"))
	assert.Equal(t, string(EventTypeOrderStatusChanged), header(w.msgs[1], "event_type"))

	var event OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &event))
	var data StatusChangedData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, "pending", data.Previous)
	assert.Equal(t, "approved", data.Current)
}

func TestPublishStatusChanged_NoChangeWritesNothing(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "storefront.orders", logging.NewNop())

	require.NoError(t, p.PublishStatusChanged(context.Background(), &models.Order{ID: 1}, models.StatusChange{}))
	assert.Empty(t, w.msgs)
}

func TestPublish_WriterErrorIsReturned(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaPublisher(&fakeWriter{err: boom}, "storefront.orders", logging.NewNop())

	err := p.PublishOrderCreated(context.Background(), &models.Order{ID: 1})
	assert.ErrorIs(t, err, boom)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type recordingHandler struct {
	mu  sync.Mutex
	ids []string
}

func (h *recordingHandler) HandleNotification(_ context.Context, n *models.GatewayNotification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, n.Data.ID.String())
	return errors.New("order not found")
}

func TestKafkaConsumer_HandlesAndCommitsEveryMessage(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"type":"payment","data":{"id":111}}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"type":"payment","data":{"id":"222"}}`)},
	}}
	h := &recordingHandler{}
	c := newKafkaConsumer(r, h, time.Second, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.committed) == 3
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"111", "222"}, h.ids)
}
