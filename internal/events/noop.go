package events

import (
	"context"
	"log/slog"

	"github.com/forestplant/backend/internal/orders/domain"
)

// NoopBus logs order lifecycle events without delivering them anywhere.
// It stands in until a real broker is wired.
type NoopBus struct{}

// NewNoopBus returns a new no-op event publisher.
func NewNoopBus() *NoopBus {
	return &NoopBus{}
}

func (n *NoopBus) PublishOrderCreated(_ context.Context, orderID string) error {
	slog.Debug("event::order_created", "order_id", orderID)
	return nil
}

func (n *NoopBus) PublishOrderStatusChanged(_ context.Context, orderID string, status domain.OrderStatus) error {
	slog.Debug("event::order_status_changed", "order_id", orderID, "status", string(status))
	return nil
}

func (n *NoopBus) PublishOrderRemoved(_ context.Context, orderID string) error {
	slog.Debug("event::order_removed", "order_id", orderID)
	return nil
}
