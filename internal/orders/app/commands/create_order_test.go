package commands_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/forestplant/backend/internal/orders/app/commands"
	"github.com/forestplant/backend/internal/orders/domain"
)

type mockRepository struct {
	mu      sync.Mutex
	created []domain.Order

	createFn func(ctx context.Context, order domain.Order) error
}

func (m *mockRepository) Create(ctx context.Context, order domain.Order) error {
	if m.createFn != nil {
		return m.createFn(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, order)
	return nil
}

func (m *mockRepository) GetByID(context.Context, string) (*domain.Order, error) { return nil, nil }
func (m *mockRepository) ListAll(context.Context) ([]domain.Order, error)        { return nil, nil }
func (m *mockRepository) ListByOwner(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}
func (m *mockRepository) Update(context.Context, domain.Order) error { return nil }
func (m *mockRepository) UpdateStatus(context.Context, string, domain.OrderStatus) error {
	return nil
}
func (m *mockRepository) SetDeletedByUser(context.Context, string) error { return nil }
func (m *mockRepository) Delete(context.Context, string) error           { return nil }

type mockCatalog struct {
	products []domain.Product
	err      error
}

func (m *mockCatalog) FindAll(context.Context) ([]domain.Product, error) {
	return m.products, m.err
}

type mockImageStore struct {
	mu    sync.Mutex
	saved map[string]string // "<orderID>/<index>" -> payload
	err   error
}

func (m *mockImageStore) Save(_ context.Context, orderID string, index int, payload string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]string)
	}
	m.saved[fmt.Sprintf("%s/%d", orderID, index)] = payload
	return fmt.Sprintf("/uploads/%s-social-%d.png", orderID, index), nil
}

type mockEventBus struct {
	publishOrderCreatedFn func(ctx context.Context, orderID string) error
}

func (m *mockEventBus) PublishOrderCreated(ctx context.Context, orderID string) error {
	if m.publishOrderCreatedFn != nil {
		return m.publishOrderCreatedFn(ctx, orderID)
	}
	return nil
}

func (m *mockEventBus) PublishOrderStatusChanged(context.Context, string, domain.OrderStatus) error {
	return nil
}

func (m *mockEventBus) PublishOrderRemoved(context.Context, string) error { return nil }

func storeCatalog() *mockCatalog {
	return &mockCatalog{products: []domain.Product{
		{ID: "p1", Name: "Fern", Price: 9.5},
		{ID: "p2", Name: "Monstera", Price: 24.99},
	}}
}

func TestCreateOrder(t *testing.T) {
	t.Run("creates pending order with snapshot items and total", func(t *testing.T) {
		repo := &mockRepository{}
		handler := commands.NewCreateOrderCommandHandler(repo, storeCatalog(), &mockImageStore{}, &mockEventBus{})

		order, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items:   []domain.RequestedItem{{PlantID: "p1", Quantity: 2}},
			Phone:   " +1 555 0100 ",
		})

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if order == nil {
			t.Fatal("expected order to be returned, got nil")
		}

		if order.ID == "" {
			t.Error("expected order ID to be generated")
		}
		if order.UserID != "u1" {
			t.Errorf("expected owner u1, got %s", order.UserID)
		}
		if order.Status != domain.StatusPending {
			t.Errorf("expected status %s, got %s", domain.StatusPending, order.Status)
		}
		if order.Phone != "+1 555 0100" {
			t.Errorf("expected trimmed phone, got %q", order.Phone)
		}
		if order.Total != 19.0 {
			t.Errorf("expected total 19.0, got %v", order.Total)
		}

		if len(order.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(order.Items))
		}
		item := order.Items[0]
		if item.PlantID != "p1" || item.Quantity != 2 || item.Price != 9.5 || item.Name != "Fern" {
			t.Errorf("unexpected item snapshot: %+v", item)
		}

		if len(repo.created) != 1 {
			t.Fatalf("expected 1 persisted order, got %d", len(repo.created))
		}
	})

	t.Run("skips unknown plants and non-positive quantities", func(t *testing.T) {
		repo := &mockRepository{}
		handler := commands.NewCreateOrderCommandHandler(repo, storeCatalog(), &mockImageStore{}, &mockEventBus{})

		order, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items: []domain.RequestedItem{
				{PlantID: "ghost", Quantity: 1},
				{PlantID: "p2", Quantity: 0},
				{PlantID: "p1", Quantity: 1},
			},
			Phone: "555",
		})

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(order.Items) != 1 || order.Items[0].PlantID != "p1" {
			t.Errorf("expected only p1 to survive, got %+v", order.Items)
		}
	})

	t.Run("rejects when no requested line survives", func(t *testing.T) {
		repo := &mockRepository{}
		handler := commands.NewCreateOrderCommandHandler(repo, storeCatalog(), &mockImageStore{}, &mockEventBus{})

		order, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items: []domain.RequestedItem{
				{PlantID: "ghost", Quantity: 1},
				{PlantID: "p1", Quantity: -2},
			},
			Phone: "555",
		})

		if !errors.Is(err, domain.ErrNoValidItems) {
			t.Fatalf("expected ErrNoValidItems, got %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
		if len(repo.created) != 0 {
			t.Errorf("expected no persisted order, got %d", len(repo.created))
		}
	})

	t.Run("rejects a blank phone", func(t *testing.T) {
		handler := commands.NewCreateOrderCommandHandler(&mockRepository{}, storeCatalog(), &mockImageStore{}, &mockEventBus{})

		_, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items:   []domain.RequestedItem{{PlantID: "p1", Quantity: 1}},
			Phone:   "   ",
		})

		if !errors.Is(err, domain.ErrPhoneRequired) {
			t.Fatalf("expected ErrPhoneRequired, got %v", err)
		}
	})

	t.Run("stores social images keyed by order id and index", func(t *testing.T) {
		repo := &mockRepository{}
		images := &mockImageStore{}
		handler := commands.NewCreateOrderCommandHandler(repo, storeCatalog(), images, &mockEventBus{})

		order, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items:   []domain.RequestedItem{{PlantID: "p1", Quantity: 1}},
			Phone:   "555",
			SocialMedia: []commands.SocialMediaInput{
				{Type: "facebook", Link: "fb.com/u1", Image: "data:image/png;base64,aGk="},
				{Type: "instagram", Link: "ig.com/u1"},
			},
		})

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(order.SocialMedia) != 2 {
			t.Fatalf("expected 2 social entries, got %d", len(order.SocialMedia))
		}

		first := order.SocialMedia[0]
		wantURL := fmt.Sprintf("/uploads/%s-social-0.png", order.ID)
		if first.ImageURL != wantURL {
			t.Errorf("expected image url %q, got %q", wantURL, first.ImageURL)
		}
		if _, ok := images.saved[order.ID+"/0"]; !ok {
			t.Error("expected image payload stored under the generated order id")
		}

		if order.SocialMedia[1].ImageURL != "" {
			t.Errorf("expected no image url for entry without payload, got %q", order.SocialMedia[1].ImageURL)
		}
	})

	t.Run("keeps at most two social entries", func(t *testing.T) {
		handler := commands.NewCreateOrderCommandHandler(&mockRepository{}, storeCatalog(), &mockImageStore{}, &mockEventBus{})

		order, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items:   []domain.RequestedItem{{PlantID: "p1", Quantity: 1}},
			Phone:   "555",
			SocialMedia: []commands.SocialMediaInput{
				{Type: "facebook"}, {Type: "instagram"}, {Type: "line"},
			},
		})

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(order.SocialMedia) != 2 {
			t.Errorf("expected 2 social entries, got %d", len(order.SocialMedia))
		}
	})

	t.Run("returns error when repository fails", func(t *testing.T) {
		repoErr := errors.New("database connection failed")
		repo := &mockRepository{
			createFn: func(context.Context, domain.Order) error { return repoErr },
		}
		handler := commands.NewCreateOrderCommandHandler(repo, storeCatalog(), &mockImageStore{}, &mockEventBus{})

		order, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items:   []domain.RequestedItem{{PlantID: "p1", Quantity: 1}},
			Phone:   "555",
		})

		if !errors.Is(err, repoErr) {
			t.Fatalf("expected repository error, got %v", err)
		}
		if order != nil {
			t.Errorf("expected nil order, got %+v", order)
		}
	})

	t.Run("returns saved order alongside publish failure", func(t *testing.T) {
		publishErr := errors.New("broker unavailable")
		events := &mockEventBus{
			publishOrderCreatedFn: func(context.Context, string) error { return publishErr },
		}
		handler := commands.NewCreateOrderCommandHandler(&mockRepository{}, storeCatalog(), &mockImageStore{}, events)

		order, err := handler.Handle(context.Background(), commands.CreateOrderCommand{
			BuyerID: "u1",
			Items:   []domain.RequestedItem{{PlantID: "p1", Quantity: 1}},
			Phone:   "555",
		})

		if !errors.Is(err, publishErr) {
			t.Fatalf("expected publish error, got %v", err)
		}
		if order == nil {
			t.Error("expected the saved order to be returned despite the publish failure")
		}
	})
}

func TestResolveSocialMedia(t *testing.T) {
	t.Run("preserves existing image when no fresh payload is supplied", func(t *testing.T) {
		images := &mockImageStore{}
		existing := []domain.SocialMediaEntry{
			{Type: "facebook", ImageURL: "/uploads/o1-social-0.png"},
			{Type: "instagram", ImageURL: "/uploads/o1-social-1.png"},
		}

		resolved, err := commands.ResolveSocialMedia(context.Background(), images, "o1",
			[]commands.SocialMediaInput{
				{Type: "facebook", Image: "data:image/png;base64,aGk="},
				{Type: "instagram"},
			}, existing)

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if resolved[0].ImageURL != "/uploads/o1-social-0.png" {
			t.Errorf("expected fresh image url at index 0, got %q", resolved[0].ImageURL)
		}
		if resolved[1].ImageURL != "/uploads/o1-social-1.png" {
			t.Errorf("expected preserved image url at index 1, got %q", resolved[1].ImageURL)
		}
	})

	t.Run("defaults an empty type to facebook", func(t *testing.T) {
		resolved, err := commands.ResolveSocialMedia(context.Background(), &mockImageStore{}, "o1",
			[]commands.SocialMediaInput{{Link: "example.com/me"}}, nil)

		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if resolved[0].Type != "facebook" {
			t.Errorf("expected default type facebook, got %q", resolved[0].Type)
		}
	})

	t.Run("propagates image store failures", func(t *testing.T) {
		storeErr := errors.New("disk full")
		_, err := commands.ResolveSocialMedia(context.Background(), &mockImageStore{err: storeErr}, "o1",
			[]commands.SocialMediaInput{{Type: "facebook", Image: "data:image/png;base64,aGk="}}, nil)

		if !errors.Is(err, storeErr) {
			t.Fatalf("expected store error, got %v", err)
		}
	})
}
