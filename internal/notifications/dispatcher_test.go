package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/internal/testdb"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
	"github.com/ulugbekov/savdo-backend/pkg/metrics"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/outbox/payloads"
	"github.com/ulugbekov/savdo-backend/pkg/sms"
)

type sentMessage struct {
	Phone string
	Text  string
}

// fakeNotifier records sends and can fail a configurable number of times.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	failures int
}

func (f *fakeNotifier) Send(_ context.Context, phone, text string) (*sms.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("gateway unavailable")
	}
	f.sent = append(f.sent, sentMessage{Phone: phone, Text: text})
	return &sms.SendResult{MessageID: uuid.NewString(), Status: "waiting"}, nil
}

func newDispatcher(t *testing.T) (*Dispatcher, *fakeNotifier, *db.Client) {
	t.Helper()
	client := testdb.Open(t)
	notifier := &fakeNotifier{}
	cfg := config.OutboxConfig{BatchSize: 50, PollInterval: 10 * time.Millisecond, MaxAttempts: 3}
	dispatcher := NewDispatcher(
		outbox.NewRepository(client.DB()),
		notifier,
		metrics.NewWorkerMetrics(prometheus.NewRegistry()),
		cfg,
		testdb.Logger(),
	)
	return dispatcher, notifier, client
}

func emitEvent(t *testing.T, client *db.Client, event outbox.DomainEvent) {
	t.Helper()
	svc := outbox.NewService(outbox.NewRepository(client.DB()), testdb.Logger())
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	}))
}

func codeEvent(codeID uuid.UUID, phone, code string) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventVerificationCodeIssued,
		AggregateType: enums.AggregateVerificationCode,
		AggregateID:   codeID,
		Data:          payloads.VerificationCodeIssuedEvent{CodeID: codeID, Phone: phone, Code: code},
		Version:       1,
	}
}

func TestDispatchBatchDeliversAndMarksPublished(t *testing.T) {
	dispatcher, notifier, client := newDispatcher(t)
	ctx := context.Background()

	emitEvent(t, client, codeEvent(uuid.New(), "+998901111111", "123456"))
	emitEvent(t, client, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          payloads.OrderCreatedEvent{OrderID: uuid.New(), OrderNumber: "ORD-20260830-AB12CD34", Phone: "+998902222222"},
		Version:       1,
	})

	delivered, err := dispatcher.DispatchBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "+998901111111", notifier.sent[0].Phone)
	assert.Contains(t, notifier.sent[0].Text, "Tasdiqlash kodi: 123456")
	assert.Contains(t, notifier.sent[1].Text, "Buyurtmangiz #ORD-20260830-AB12CD34")

	var pending int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("published_at IS NULL").Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestDispatchRetriesTransientFailure(t *testing.T) {
	dispatcher, notifier, client := newDispatcher(t)
	notifier.failures = 1

	emitEvent(t, client, codeEvent(uuid.New(), "+998901111111", "123456"))

	delivered, err := dispatcher.DispatchBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Len(t, notifier.sent, 1, "second attempt succeeds")
}

func TestDispatchRecordsFailure(t *testing.T) {
	dispatcher, notifier, client := newDispatcher(t)
	notifier.failures = 100

	emitEvent(t, client, codeEvent(uuid.New(), "+998901111111", "123456"))

	delivered, err := dispatcher.DispatchBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row).Error)
	assert.Nil(t, row.PublishedAt)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "gateway unavailable")
}

func TestDispatchStopsRetryingAtAttemptCap(t *testing.T) {
	dispatcher, notifier, client := newDispatcher(t)
	notifier.failures = 1000
	ctx := context.Background()

	emitEvent(t, client, codeEvent(uuid.New(), "+998901111111", "123456"))

	// Each batch burns one attempt; after the cap the row is parked.
	for i := 0; i < 5; i++ {
		_, err := dispatcher.DispatchBatch(ctx)
		require.NoError(t, err)
	}

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row).Error)
	assert.Equal(t, 3, row.AttemptCount, "attempts stop at the configured cap")
}

func TestDispatchSkipsUnknownEventTypes(t *testing.T) {
	dispatcher, notifier, client := newDispatcher(t)

	require.NoError(t, client.DB().Create(&models.OutboxEvent{
		EventType:     "mystery.event",
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"eventId":"x","occurredAt":"2026-08-30T00:00:00Z","data":{}}`),
	}).Error)

	delivered, err := dispatcher.DispatchBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Empty(t, notifier.sent)

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row).Error)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "no SMS template")
}
