package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes checkout outcomes keyed by user, so one user's
// events stay ordered within a partition.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func userKey(userID string) string {
	return "user-" + userID
}

// PublishCheckoutSettled publishes CheckoutSettled event
func (ep *EventPublisher) PublishCheckoutSettled(ctx context.Context, event *models.CheckoutSettledEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event.EventType, event)
}

// PublishCheckoutDeclined publishes CheckoutDeclined event
func (ep *EventPublisher) PublishCheckoutDeclined(ctx context.Context, event *models.CheckoutDeclinedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event.EventType, event)
}

// PublishCheckoutFailed publishes CheckoutFailed event
func (ep *EventPublisher) PublishCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event.EventType, event)
}

// PublishCartClearFailed publishes CartClearFailed event
func (ep *EventPublisher) PublishCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event.EventType, event)
}

// PublishLedgerRepair publishes a terminal outcome the ledger is missing
func (ep *EventPublisher) PublishLedgerRepair(ctx context.Context, event *models.LedgerRepairEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event.EventType, event)
}

// CommandPublisher sends catalog commands, keyed by category.
type CommandPublisher struct {
	producer *Producer
}

// NewCommandPublisher creates a new command publisher
func NewCommandPublisher(producer *Producer) *CommandPublisher {
	return &CommandPublisher{producer: producer}
}

// PublishCategoryReparented publishes CategoryReparented command
func (cp *CommandPublisher) PublishCategoryReparented(ctx context.Context, event *models.CategoryReparentedEvent) error {
	return cp.producer.PublishEvent(ctx, "category-"+event.CategoryID, event.EventType, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onCategoryReparented func(context.Context, *models.CategoryReparentedEvent) error
	onCartClearFailed    func(context.Context, *models.CartClearFailedEvent) error
	onLedgerRepair       func(context.Context, *models.LedgerRepairEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnCategoryReparented registers a handler for CategoryReparented commands
func (eh *EventHandler) OnCategoryReparented(handler func(context.Context, *models.CategoryReparentedEvent) error) {
	eh.onCategoryReparented = handler
}

// OnCartClearFailed registers a handler for CartClearFailed events
func (eh *EventHandler) OnCartClearFailed(handler func(context.Context, *models.CartClearFailedEvent) error) {
	eh.onCartClearFailed = handler
}

// OnLedgerRepair registers a handler for LedgerRepair events
func (eh *EventHandler) OnLedgerRepair(handler func(context.Context, *models.LedgerRepairEvent) error) {
	eh.onLedgerRepair = handler
}

// HandleMessage routes messages to appropriate handlers. Event types without
// a registered handler are acknowledged and skipped.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg, EventTypeHeader)
	if eventType == "" {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			return fmt.Errorf("failed to unmarshal base event: %w", err)
		}
		eventType = baseEvent.EventType
	}

	eh.logger.Debug("Handling event", zap.String("event_type", eventType), zap.Int64("offset", msg.Offset))

	switch eventType {
	case models.EventTypeCategoryReparented:
		if eh.onCategoryReparented != nil {
			var event models.CategoryReparentedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CategoryReparented event: %w", err)
			}
			return eh.onCategoryReparented(ctx, &event)
		}

	case models.EventTypeCartClearFailed:
		if eh.onCartClearFailed != nil {
			var event models.CartClearFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CartClearFailed event: %w", err)
			}
			return eh.onCartClearFailed(ctx, &event)
		}

	case models.EventTypeLedgerRepair:
		if eh.onLedgerRepair != nil {
			var event models.LedgerRepairEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal LedgerRepair event: %w", err)
			}
			return eh.onLedgerRepair(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", eventType))
	}

	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
