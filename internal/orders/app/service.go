package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/forestplant/backend/internal/orders/app/commands"
	"github.com/forestplant/backend/internal/orders/domain"
	"github.com/forestplant/backend/internal/orders/metrics"
	"github.com/forestplant/backend/internal/orders/ports"
	"github.com/forestplant/backend/internal/orders/receipt"
)

var (
	// ErrForbidden is returned when the actor is neither an admin nor
	// the owner of the order.
	ErrForbidden = errors.New("not allowed to act on this order")
	// ErrNotEditable is returned when mutating an order that has left
	// the pending status.
	ErrNotEditable = errors.New("order can no longer be edited")
	// ErrNotRemovable is returned when an owner tries to delete an
	// order that is neither pending nor delivered.
	ErrNotRemovable = errors.New("order can no longer be removed")
	// ErrStatusRegression is returned when a status update would move
	// the order backward in its lifecycle.
	ErrStatusRegression = errors.New("order status cannot move backward")
	// ErrReceiptNotReady is returned when a receipt is requested for an
	// order that has not been delivered.
	ErrReceiptNotReady = errors.New("receipt only available for delivered orders")
)

// Fallbacks used when identity enrichment cannot resolve the user.
const (
	unknownUserName = "Unknown User"
	defaultActor    = "Admin"
)

// Actor identifies who is invoking an operation.
type Actor struct {
	ID    string
	Name  string
	Admin bool
}

// Service is the order lifecycle engine: it enforces creation, mutation,
// status transition and deletion rules, computes totals, and orchestrates
// image persistence for contact-proof attachments.
type Service struct {
	repo               ports.OrderRepository
	catalog            ports.Catalog
	identity           ports.Identity
	images             ports.ImageStore
	events             ports.EventBus
	idemStore          ports.IdempotencyStore
	createOrderHandler commands.CommandHandler
	logger             *slog.Logger
	metrics            *metrics.Metrics
}

// NewService wires required dependencies.
func NewService(
	repo ports.OrderRepository,
	catalog ports.Catalog,
	identity ports.Identity,
	images ports.ImageStore,
	events ports.EventBus,
	idem ports.IdempotencyStore,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	coreHandler := commands.NewCreateOrderCommandHandler(repo, catalog, images, events)
	observableHandler := commands.NewObservableCommandHandler(coreHandler, logger, metrics)

	return &Service{
		repo:               repo,
		catalog:            catalog,
		identity:           identity,
		images:             images,
		events:             events,
		idemStore:          idem,
		createOrderHandler: observableHandler,
		logger:             logger,
		metrics:            metrics,
	}
}

// OrderInput captures the caller-editable parts of an order. It is used
// for both creation and update.
type OrderInput struct {
	Items       []domain.RequestedItem
	Phone       string
	SocialMedia []commands.SocialMediaInput
}

// CreateOrder places a new pending order for the actor.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, input OrderInput) (*domain.Order, error) {
	return s.createOrderHandler.Handle(ctx, commands.CreateOrderCommand{
		BuyerID:     actor.ID,
		Items:       input.Items,
		Phone:       input.Phone,
		SocialMedia: input.SocialMedia,
	})
}

// GetOrder retrieves an order by id. Non-admin actors may only read
// their own orders.
func (s *Service) GetOrder(ctx context.Context, actor Actor, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !order.OwnedBy(actor.ID) {
		return nil, ErrForbidden
	}

	s.enrich(ctx, order)
	return order, nil
}

// ListMyOrders returns the actor's orders, newest first, excluding those
// the actor has hidden after delivery.
func (s *Service) ListMyOrders(ctx context.Context, actor Actor) ([]domain.Order, error) {
	orders, err := s.repo.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		s.enrich(ctx, &orders[i])
	}
	return orders, nil
}

// ListAllOrders returns every order regardless of the soft-delete flag,
// newest first, enriched with the owner's display name and email.
func (s *Service) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		s.enrich(ctx, &orders[i])
	}
	return orders, nil
}

// UpdateOrder replaces the items and contact details of a pending order.
// Items and total are recomputed from the current catalog exactly as in
// creation; social entries without a fresh image payload keep the image
// stored at the same index.
func (s *Service) UpdateOrder(ctx context.Context, actor Actor, id string, input OrderInput) (order *domain.Order, err error) {
	defer func() { s.metrics.RecordOrderMutation(ctx, "update", err == nil) }()

	order, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Editable() {
		return nil, ErrNotEditable
	}
	if !actor.Admin && !order.OwnedBy(actor.ID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, domain.ErrPhoneRequired
	}

	catalog, err := s.catalog.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	items, _ := domain.BuildItems(catalog, input.Items)
	if len(items) == 0 {
		return nil, domain.ErrNoValidItems
	}

	social, err := commands.ResolveSocialMedia(ctx, s.images, id, input.SocialMedia, order.SocialMedia)
	if err != nil {
		return nil, err
	}

	order.Items = items
	order.Total = domain.ItemsTotal(items)
	order.Phone = strings.TrimSpace(input.Phone)
	order.SocialMedia = social
	order.UpdatedAt = time.Now().UTC()

	if err = s.repo.Update(ctx, *order); err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateOrderStatus moves an order forward in its lifecycle. Statuses
// outside the enumerated set and backward transitions are rejected;
// skipping a stage forward is allowed.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, rawStatus string) (order *domain.Order, err error) {
	defer func() { s.metrics.RecordOrderMutation(ctx, "status", err == nil) }()

	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	order, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanAdvanceTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStatusRegression, order.Status, status)
	}

	if err = s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	order.Status = status
	order.UpdatedAt = time.Now().UTC()

	if pubErr := s.events.PublishOrderStatusChanged(ctx, id, status); pubErr != nil {
		s.logger.WarnContext(ctx, "status updated but event publish failed",
			"order_id", id, "error", pubErr)
	}

	return order, nil
}

// RemoveOrder terminates an order on behalf of the actor. Admins always
// hard-delete. Owners hard-delete pending orders, soft-hide delivered
// ones, and are rejected for anything in between.
func (s *Service) RemoveOrder(ctx context.Context, actor Actor, id string) (err error) {
	defer func() { s.metrics.RecordOrderMutation(ctx, "remove", err == nil) }()

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Admin && !order.OwnedBy(actor.ID) {
		return ErrForbidden
	}

	switch {
	case actor.Admin, order.Status == domain.StatusPending:
		if err = s.repo.Delete(ctx, id); err != nil {
			return err
		}
	case order.Status == domain.StatusDelivered:
		// Soft hide: the record stays retrievable by id and in admin
		// listings, it only disappears from the owner's list.
		return s.repo.SetDeletedByUser(ctx, id)
	default:
		return ErrNotRemovable
	}

	if pubErr := s.events.PublishOrderRemoved(ctx, id); pubErr != nil {
		s.logger.WarnContext(ctx, "order removed but event publish failed",
			"order_id", id, "error", pubErr)
	}
	return nil
}

// RemoveOrderPermanent hard-deletes an order bypassing ownership and
// status checks. Admin-only; the HTTP layer gates access.
func (s *Service) RemoveOrderPermanent(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordOrderMutation(ctx, "remove_permanent", err == nil) }()

	if err = s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if pubErr := s.events.PublishOrderRemoved(ctx, id); pubErr != nil {
		s.logger.WarnContext(ctx, "order removed but event publish failed",
			"order_id", id, "error", pubErr)
	}
	return nil
}

// GetReceipt renders the HTML receipt for a delivered order. Non-admin
// actors may only request receipts for their own orders.
func (s *Service) GetReceipt(ctx context.Context, actor Actor, id string) (*receipt.Receipt, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !order.OwnedBy(actor.ID) {
		return nil, ErrForbidden
	}
	if order.Status != domain.StatusDelivered {
		return nil, ErrReceiptNotReady
	}

	s.enrich(ctx, order)

	actorName := strings.TrimSpace(actor.Name)
	if actorName == "" {
		actorName = defaultActor
	}

	rendered, err := receipt.Render(*order, actorName)
	if err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	s.metrics.RecordReceiptRendered(ctx)
	return rendered, nil
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}

// enrich attaches the owner's display name and email. Lookup failures
// never fail the calling operation; placeholder data is used instead.
func (s *Service) enrich(ctx context.Context, order *domain.Order) {
	user, err := s.identity.FindByID(ctx, order.UserID)
	if err != nil || user == nil {
		order.UserName = unknownUserName
		order.UserEmail = ""
		return
	}
	order.UserName = user.Name
	order.UserEmail = user.Email
}
