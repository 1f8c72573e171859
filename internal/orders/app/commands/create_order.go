package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forestplant/backend/internal/orders/domain"
	"github.com/forestplant/backend/internal/orders/ports"
)

// SocialMediaInput is a caller-supplied contact entry. Image holds the
// inbound payload (URL or base64 data URI) before resolution.
type SocialMediaInput struct {
	Type  string
	Link  string
	Image string
}

type CreateOrderCommand struct {
	BuyerID     string
	Items       []domain.RequestedItem
	Phone       string
	SocialMedia []SocialMediaInput
}

func (c CreateOrderCommand) Validate() error {
	if strings.TrimSpace(c.BuyerID) == "" {
		return errors.New("buyer id is required")
	}
	if len(c.Items) == 0 {
		return domain.ErrNoValidItems
	}
	if strings.TrimSpace(c.Phone) == "" {
		return domain.ErrPhoneRequired
	}
	return nil
}

type CommandHandler interface {
	Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
}

type CreateOrderCommandHandler struct {
	repo    ports.OrderRepository
	catalog ports.Catalog
	images  ports.ImageStore
	events  ports.EventBus
}

func NewCreateOrderCommandHandler(
	repo ports.OrderRepository,
	catalog ports.Catalog,
	images ports.ImageStore,
	events ports.EventBus,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		repo:    repo,
		catalog: catalog,
		images:  images,
		events:  events,
	}
}

// Handle places a new pending order. Requested lines referencing unknown
// plants or non-positive quantities are skipped; an order with no
// surviving lines is rejected outright. The order id is generated here,
// before image resolution, so image file names can embed it and the
// order is persisted in a single write.
func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	catalog, err := h.catalog.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	items, _ := domain.BuildItems(catalog, cmd.Items)
	if len(items) == 0 {
		return nil, domain.ErrNoValidItems
	}

	orderID := uuid.NewString()

	social, err := ResolveSocialMedia(ctx, h.images, orderID, cmd.SocialMedia, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:          orderID,
		UserID:      cmd.BuyerID,
		Items:       items,
		Total:       domain.ItemsTotal(items),
		Status:      domain.StatusPending,
		Phone:       strings.TrimSpace(cmd.Phone),
		SocialMedia: social,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := h.events.PublishOrderCreated(ctx, order.ID); err != nil {
		return &order, fmt.Errorf("order saved but failed to publish event: %w", err)
	}

	return &order, nil
}

// ResolveSocialMedia turns caller-supplied entries into stored ones,
// keeping at most the first two. Entries are resolved concurrently and
// assembled back into index order. When an entry carries no fresh image
// payload, the image URL at the same index in existing is preserved.
func ResolveSocialMedia(
	ctx context.Context,
	store ports.ImageStore,
	orderID string,
	inputs []SocialMediaInput,
	existing []domain.SocialMediaEntry,
) ([]domain.SocialMediaEntry, error) {
	if len(inputs) == 0 {
		return []domain.SocialMediaEntry{}, nil
	}
	if len(inputs) > domain.MaxSocialMedia {
		inputs = inputs[:domain.MaxSocialMedia]
	}

	resolved := make([]domain.SocialMediaEntry, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		g.Go(func() error {
			entry := domain.SocialMediaEntry{
				Type: input.Type,
				Link: input.Link,
			}
			if entry.Type == "" {
				entry.Type = "facebook"
			}

			if input.Image != "" {
				url, err := store.Save(ctx, orderID, i, input.Image)
				if err != nil {
					return fmt.Errorf("save social image %d: %w", i, err)
				}
				entry.ImageURL = url
			} else if i < len(existing) {
				entry.ImageURL = existing[i].ImageURL
			}

			resolved[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return resolved, nil
}
