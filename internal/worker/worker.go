package worker

import (
	"context"
	"fmt"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// StatsWorker consumes checkout events and maintains customer lifetime
// value and order counts. Updates are deduped by event id, so a replayed
// partition never double-counts.
type StatsWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewStatsWorker creates a new stats worker
func NewStatsWorker(consumer *broker.Consumer, store *store.Store) *StatsWorker {
	w := &StatsWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCompleted(w.handleOrderCompleted)
	eventHandler.OnPaymentDeclined(w.handlePaymentDeclined)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *StatsWorker) Start(ctx context.Context) error {
	log.Println("Starting stats worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StatsWorker) Stop() error {
	log.Println("Stopping stats worker...")
	return w.consumer.Close()
}

func (w *StatsWorker) handleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.store.ApplyOrderStats(ctx, event.CustomerID, event.Total); err != nil {
		return fmt.Errorf("failed to apply order stats: %w", err)
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	w.logger.Info("Customer stats updated",
		zap.Int64("customer_id", event.CustomerID),
		zap.String("order_number", event.OrderNumber),
		zap.String("total", event.Total.String()))
	return nil
}

func (w *StatsWorker) handlePaymentDeclined(ctx context.Context, event *models.PaymentDeclinedEvent) error {
	// Declines are already recorded on the customer row at charge time;
	// the event exists for downstream consumers. Log for operator
	// visibility only.
	w.logger.Info("Payment declined",
		zap.Int64("customer_id", event.CustomerID),
		zap.String("reason", event.Reason),
		zap.Int("decline_count", event.DeclineCount))
	return nil
}
