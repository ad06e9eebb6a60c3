package notifications

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/metrics"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/sms"
)

const (
	sendRetries   = 2
	retryBaseWait = 250 * time.Millisecond
)

// Dispatcher drains the outbox and pushes SMS notifications through the
// gateway. Delivery is at-least-once: a crash between Send and MarkPublished
// re-sends the message, which is harmless for SMS.
type Dispatcher struct {
	repo         *outbox.Repository
	notifier     sms.Notifier
	metrics      *metrics.WorkerMetrics
	logg         *logger.Logger
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewDispatcher(
	repo *outbox.Repository,
	notifier sms.Notifier,
	workerMetrics *metrics.WorkerMetrics,
	cfg config.OutboxConfig,
	logg *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:         repo,
		notifier:     notifier,
		metrics:      workerMetrics,
		logg:         logg,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: cfg.PollInterval,
	}
}

// Run polls the outbox until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.logg.Info(ctx, "notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "notification dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DispatchBatch(ctx); err != nil {
				d.logg.Error(ctx, "dispatch batch failed", err)
			}
		}
	}
}

// DispatchBatch processes one batch of pending events and reports how many
// were delivered.
func (d *Dispatcher) DispatchBatch(ctx context.Context) (int, error) {
	rows, err := d.repo.FetchUnpublished(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := range rows {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if d.dispatchOne(ctx, &rows[i]) {
			delivered++
		}
	}
	return delivered, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, event *models.OutboxEvent) bool {
	eventType := string(event.EventType)
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":  event.ID.String(),
		"event_type": eventType,
	})

	msg, err := renderMessage(event)
	if err != nil {
		// Unrenderable rows burn an attempt each cycle until the cap
		// parks them for inspection.
		d.metrics.Failed.WithLabelValues(eventType).Inc()
		d.logg.Error(logCtx, "rendering notification failed", err)
		d.markFailed(logCtx, event, err)
		return false
	}

	attempt := 0
	backoff := retry.WithMaxRetries(sendRetries, retry.NewExponential(retryBaseWait))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if _, sendErr := d.notifier.Send(ctx, msg.Phone, msg.Text); sendErr != nil {
			if attempt <= sendRetries {
				d.metrics.Retried.WithLabelValues(eventType).Inc()
			}
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	if err != nil {
		d.metrics.Failed.WithLabelValues(eventType).Inc()
		d.logg.Error(logCtx, "sms dispatch failed", err)
		d.markFailed(logCtx, event, err)
		return false
	}

	if err := d.repo.MarkPublished(ctx, event.ID); err != nil {
		d.logg.Error(logCtx, "marking event published failed", err)
		return false
	}
	d.metrics.Sent.WithLabelValues(eventType).Inc()
	d.logg.Info(logCtx, "notification delivered")
	return true
}

func (d *Dispatcher) markFailed(ctx context.Context, event *models.OutboxEvent, cause error) {
	if err := d.repo.MarkFailed(ctx, event.ID, cause); err != nil {
		d.logg.Error(ctx, "recording dispatch failure failed", err)
	}
}
