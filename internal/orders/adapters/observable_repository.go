package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/forestplant/backend/internal/database"
	"github.com/forestplant/backend/internal/orders/domain"
	"github.com/forestplant/backend/internal/orders/ports"
	"github.com/forestplant/backend/internal/telemetry"
)

type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	return r.exec(ctx, "OrderRepository.Create", "create_order", order.ID, func(ctx context.Context) error {
		return r.repo.Create(ctx, order)
	})
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := r.exec(ctx, "OrderRepository.GetByID", "get_order_by_id", id, func(ctx context.Context) error {
		var err error
		order, err = r.repo.GetByID(ctx, id)
		return err
	})
	return order, err
}

func (r *ObservableRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.exec(ctx, "OrderRepository.ListAll", "list_all_orders", "", func(ctx context.Context) error {
		var err error
		orders, err = r.repo.ListAll(ctx)
		return err
	})
	return orders, err
}

func (r *ObservableRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.exec(ctx, "OrderRepository.ListByOwner", "list_orders_by_owner", "", func(ctx context.Context) error {
		var err error
		orders, err = r.repo.ListByOwner(ctx, ownerID)
		return err
	})
	return orders, err
}

func (r *ObservableRepository) Update(ctx context.Context, order domain.Order) error {
	return r.exec(ctx, "OrderRepository.Update", "update_order", order.ID, func(ctx context.Context) error {
		return r.repo.Update(ctx, order)
	})
}

func (r *ObservableRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	return r.exec(ctx, "OrderRepository.UpdateStatus", "update_order_status", id, func(ctx context.Context) error {
		return r.repo.UpdateStatus(ctx, id, status)
	})
}

func (r *ObservableRepository) SetDeletedByUser(ctx context.Context, id string) error {
	return r.exec(ctx, "OrderRepository.SetDeletedByUser", "soft_delete_order", id, func(ctx context.Context) error {
		return r.repo.SetDeletedByUser(ctx, id)
	})
}

func (r *ObservableRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "OrderRepository.Delete", "delete_order", id, func(ctx context.Context) error {
		return r.repo.Delete(ctx, id)
	})
}

func (r *ObservableRepository) exec(ctx context.Context, spanName, operation, orderID string, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	attrs := []attribute.KeyValue{attribute.String("operation", operation)}
	if orderID != "" {
		attrs = append(attrs, attribute.String("order.id", orderID))
	}
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	r.metrics.RecordQuery(ctx, operation, duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
