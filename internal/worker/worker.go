// Package worker persists overload alerts asynchronously from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/axle/internal/alert"
	"github.com/opensource-finance/axle/internal/domain"
	"github.com/opensource-finance/axle/internal/observability"
)

// Alert outcomes, used as the metrics label.
const (
	OutcomeSent        = "sent"
	OutcomePartial     = "partial"
	OutcomeFailed      = "failed"
	OutcomeUnavailable = "unavailable"
	OutcomeSkipped     = "skipped"
	OutcomeInvalid     = "invalid"
)

// DefaultDrainTimeout bounds how long Stop waits for queued events.
const DefaultDrainTimeout = 10 * time.Second

// Notifier receives every persisted notification.
type Notifier interface {
	Broadcast(v any) error
}

// NotificationReader loads a persisted notification for streaming.
type NotificationReader interface {
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)
}

// Worker consumes overload events and runs them through the alert sink.
// Persistence uses the worker's own context, so it is not tied to the
// request that produced the event.
type Worker struct {
	bus           domain.EventBus
	sink          *alert.Sink
	notifications NotificationReader
	notifier      Notifier
	metrics       *observability.Metrics

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
	inflight      sync.WaitGroup
	drainTimeout  time.Duration

	processed atomic.Uint64
	sent      atomic.Uint64
	failed    atomic.Uint64
}

// NewWorker creates an alert worker. notifications, notifier and metrics may
// be nil.
func NewWorker(bus domain.EventBus, sink *alert.Sink, notifications NotificationReader, notifier Notifier, metrics *observability.Metrics) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:           bus,
		sink:          sink,
		notifications: notifications,
		notifier:      notifier,
		metrics:       metrics,
		ctx:           ctx,
		cancel:        cancel,
		drainTimeout:  DefaultDrainTimeout,
	}
}

// Start subscribes to overload events.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicOverloadDetected, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicOverloadDetected, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("alert worker started",
		"topic", domain.TopicOverloadDetected,
	)
	return nil
}

// Stop unsubscribes, then waits up to the drain timeout for queued and
// in-flight events to be persisted before cancelling the worker context.
func (w *Worker) Stop() error {
	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		for _, sub := range subs {
			if err := sub.Unsubscribe(); err != nil {
				slog.Error("failed to unsubscribe",
					"topic", sub.Topic(),
					"error", err,
				)
			}
		}
		w.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(w.drainTimeout):
		slog.Warn("alert worker drain timed out, cancelling pending alerts",
			"timeout", w.drainTimeout,
			"processed", w.processed.Load(),
		)
	}
	w.cancel()

	slog.Info("alert worker stopped",
		"processed", w.processed.Load(),
		"sent", w.sent.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// handleMessage ignores the delivery context and uses the worker's own.
func (w *Worker) handleMessage(_ context.Context, msg *domain.Message) error {
	w.inflight.Add(1)
	defer w.inflight.Done()

	var event domain.OverloadEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.failed.Add(1)
		w.metrics.ObserveAlert(OutcomeInvalid)
		return fmt.Errorf("invalid overload event %s: %w", msg.ID, err)
	}

	w.process(w.ctx, &event)
	return nil
}

func (w *Worker) process(ctx context.Context, event *domain.OverloadEvent) domain.AlertResult {
	start := time.Now()
	w.processed.Add(1)

	result := w.sink.SendAlert(ctx, event.State, event.Assessment, event.Location)
	outcome := outcomeOf(result)
	w.metrics.ObserveAlert(outcome)

	if result.Success {
		w.sent.Add(1)
	} else {
		w.failed.Add(1)
	}

	slog.Debug("overload event processed",
		"registration", event.State.RegistrationNumber,
		"trace_id", event.TraceID,
		"outcome", outcome,
		"queued_ms", start.Sub(event.SubmittedAt).Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if !result.Success && outcome != OutcomeSkipped {
		slog.Error("overload alert not persisted",
			"registration", event.State.RegistrationNumber,
			"trace_id", event.TraceID,
			"alert_id", result.AlertID,
			"message", result.Message,
		)
	}

	w.publishResult(ctx, result)
	if result.Success {
		w.stream(ctx, result.NotificationID)
	}

	return result
}

func (w *Worker) publishResult(ctx context.Context, result domain.AlertResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to encode alert result", "error", err)
		return
	}
	if err := w.bus.Publish(ctx, domain.TopicAlertResult, payload); err != nil {
		slog.Warn("failed to publish alert result",
			"alert_id", result.AlertID,
			"error", err,
		)
	}
}

func (w *Worker) stream(ctx context.Context, notificationID string) {
	if w.notifier == nil || w.notifications == nil {
		return
	}

	n, err := w.notifications.GetNotification(ctx, notificationID)
	if err != nil {
		slog.Warn("failed to load notification for stream",
			"notification_id", notificationID,
			"error", err,
		)
		return
	}
	if err := w.notifier.Broadcast(n); err != nil {
		slog.Warn("failed to broadcast notification",
			"notification_id", notificationID,
			"error", err,
		)
	}
}

func outcomeOf(result domain.AlertResult) string {
	switch {
	case result.Success:
		return OutcomeSent
	case result.AlertID != "":
		return OutcomePartial
	case result.Message == alert.MsgNotOverloaded:
		return OutcomeSkipped
	case result.Message == alert.MsgStoreUnavailable:
		return OutcomeUnavailable
	default:
		return OutcomeFailed
	}
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         uint64   `json:"processed"`
	Sent              uint64   `json:"sent"`
	Failed            uint64   `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	w.mu.Unlock()

	return Stats{
		SubscriptionCount: len(topics),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Sent:              w.sent.Load(),
		Failed:            w.failed.Load(),
	}
}
