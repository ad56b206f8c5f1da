package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/scenestudio/pkg/models"
)

func completedChange() StatusChange {
	return StatusChange{
		ProjectID: "p1",
		SceneID:   "s1",
		Prompt:    "Draw a circle",
		From:      models.SceneStatusProcessing,
		To:        models.SceneStatusCompleted,
		VideoURL:  "http://videos/s1.mp4",
		At:        time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStatusChange_Event(t *testing.T) {
	c := completedChange()
	assert.Equal(t, EventSceneCompleted, c.Event())

	c.To = models.SceneStatusFailed
	assert.Equal(t, EventSceneFailed, c.Event())

	c.To = models.SceneStatusProcessing
	assert.Equal(t, EventSceneUpdated, c.Event())
}

func TestMulti_CallsEveryNotifier(t *testing.T) {
	var calls []string
	record := func(name string, err error) Notifier {
		return NotifierFunc(func(ctx context.Context, change StatusChange) error {
			calls = append(calls, name)
			return err
		})
	}

	m := Multi{record("a", errors.New("a failed")), nil, record("b", nil), Nop{}}
	err := m.Notify(context.Background(), completedChange())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.Equal(t, []string{"a", "b"}, calls)

	assert.NoError(t, Multi{}.Notify(context.Background(), completedChange()))
}

func TestWebhook_DeliversSignedPayload(t *testing.T) {
	var (
		mu      sync.Mutex
		body    []byte
		headers http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL, "s3cret", nil)
	require.NoError(t, wh.Notify(context.Background(), completedChange()))

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, EventSceneCompleted, headers.Get(HeaderEvent))
	assert.NotEmpty(t, headers.Get(HeaderDelivery))
	assert.True(t, Verify(body, "s3cret", headers.Get(HeaderSignature)))
	assert.False(t, Verify(body, "other", headers.Get(HeaderSignature)))

	var payload Payload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, EventSceneCompleted, payload.Event)
	assert.Equal(t, "s1", payload.Data.SceneID)
	assert.Equal(t, "http://videos/s1.mp4", payload.Data.VideoURL)

	deliveries := wh.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, DeliveryDelivered, deliveries[0].Status)
}

func TestWebhook_NoSecretNoSignature(t *testing.T) {
	var sawSignature atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSignature.Store(r.Header.Get(HeaderSignature) != "")
	}))
	defer server.Close()

	require.NoError(t, NewWebhook(server.URL, "", nil).Notify(context.Background(), completedChange()))
	assert.False(t, sawSignature.Load())
}

func TestWebhook_RetriesUntilDelivered(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL, "", nil)
	wh.SetRetryDelays([]time.Duration{0, 0, 0})

	ctx := context.Background()
	err := wh.Notify(ctx, completedChange())
	require.Error(t, err)

	d := wh.Deliveries()
	require.Len(t, d, 1)
	assert.Equal(t, DeliveryPending, d[0].Status)
	assert.Equal(t, 1, d[0].RetryCount)
	assert.Equal(t, http.StatusServiceUnavailable, d[0].StatusCode)

	wh.RetryPending(ctx)
	wh.RetryPending(ctx)

	d = wh.Deliveries()
	require.Len(t, d, 1)
	assert.Equal(t, DeliveryDelivered, d[0].Status)
	assert.Equal(t, 2, d[0].RetryCount)

	// finished deliveries are forgotten on the next pass
	wh.RetryPending(ctx)
	assert.Empty(t, wh.Deliveries())
}

func TestWebhook_GivesUpAfterSchedule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL, "", nil)
	wh.SetRetryDelays([]time.Duration{0})

	ctx := context.Background()
	require.Error(t, wh.Notify(ctx, completedChange()))
	wh.RetryPending(ctx)

	d := wh.Deliveries()
	require.Len(t, d, 1)
	assert.Equal(t, DeliveryFailed, d[0].Status)
	assert.NotNil(t, d[0].CompletedAt)
}

func TestWebhook_BackoffNotElapsed(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL, "", nil)
	require.Error(t, wh.Notify(context.Background(), completedChange()))

	wh.RetryPending(context.Background())
	assert.Equal(t, int32(1), attempts.Load(), "default schedule waits a minute before retrying")
}

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher_Notify(t *testing.T) {
	fake := &fakePublisher{}
	p := &AMQPPublisher{channel: fake}

	require.NoError(t, p.Notify(context.Background(), completedChange()))

	assert.Equal(t, ExchangeName, fake.exchange)
	assert.Equal(t, EventSceneCompleted, fake.key)
	assert.Equal(t, "application/json", fake.msg.ContentType)
	assert.Equal(t, amqp.Persistent, fake.msg.DeliveryMode)
	assert.Equal(t, "s1:completed", fake.msg.MessageId)

	var change StatusChange
	require.NoError(t, json.Unmarshal(fake.msg.Body, &change))
	assert.Equal(t, "p1", change.ProjectID)

	require.NoError(t, p.Close())
	assert.True(t, fake.closed)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	p := &AMQPPublisher{channel: &fakePublisher{err: amqp.ErrClosed}}

	err := p.Notify(context.Background(), completedChange())
	require.Error(t, err)
	assert.ErrorIs(t, err, amqp.ErrClosed)
}
