package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"checkout-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing checkout funnel events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func customerKey(customerID int64) string {
	return fmt.Sprintf("customer-%d", customerID)
}

// PublishLeadCaptured publishes LeadCaptured event
func (ep *EventPublisher) PublishLeadCaptured(ctx context.Context, event *models.LeadCapturedEvent) error {
	return ep.producer.PublishEvent(ctx, customerKey(event.CustomerID), event)
}

// PublishCheckoutPriced publishes CheckoutPriced event
func (ep *EventPublisher) PublishCheckoutPriced(ctx context.Context, event *models.CheckoutPricedEvent) error {
	return ep.producer.PublishEvent(ctx, customerKey(event.CustomerID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, customerKey(event.CustomerID), event)
}

// PublishPaymentDeclined publishes PaymentDeclined event
func (ep *EventPublisher) PublishPaymentDeclined(ctx context.Context, event *models.PaymentDeclinedEvent) error {
	return ep.producer.PublishEvent(ctx, customerKey(event.CustomerID), event)
}

// EventHandler routes incoming checkout events to registered callbacks
type EventHandler struct {
	onOrderCompleted  func(context.Context, *models.OrderCompletedEvent) error
	onPaymentDeclined func(context.Context, *models.PaymentDeclinedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnPaymentDeclined registers a handler for PaymentDeclined events
func (eh *EventHandler) OnPaymentDeclined(handler func(context.Context, *models.PaymentDeclinedEvent) error) {
	eh.onPaymentDeclined = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	case models.EventTypePaymentDeclined:
		if eh.onPaymentDeclined != nil {
			var event models.PaymentDeclinedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentDeclined event: %w", err)
			}
			return eh.onPaymentDeclined(ctx, &event)
		}

	default:
		// LEAD_CAPTURED and CHECKOUT_PRICED are consumed by downstream
		// analytics, not this service.
	}

	return nil
}
