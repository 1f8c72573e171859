package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/forestplant/backend/internal/catalog/memory"
	"github.com/forestplant/backend/internal/events"
	idmemory "github.com/forestplant/backend/internal/identity/memory"
	imagesfs "github.com/forestplant/backend/internal/images/fs"
	idemmemory "github.com/forestplant/backend/internal/idempotency/memory"
	"github.com/forestplant/backend/internal/orders/app"
	"github.com/forestplant/backend/internal/orders/app/commands"
	ordersmemory "github.com/forestplant/backend/internal/orders/adapters/memory"
	"github.com/forestplant/backend/internal/orders/domain"
	"github.com/forestplant/backend/internal/orders/metrics"
	"github.com/forestplant/backend/internal/orders/ports"
)

var (
	owner    = app.Actor{ID: "u1", Name: "Alex Morgan"}
	stranger = app.Actor{ID: "u2", Name: "Sam Doe"}
	admin    = app.Actor{ID: "a1", Name: "Store Admin", Admin: true}
)

type fixture struct {
	service *app.Service
	repo    *ordersmemory.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	m, err := metrics.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("failed to build metrics: %v", err)
	}

	repo := ordersmemory.NewRepository()
	catalog := memory.NewStore(
		domain.Product{ID: "p1", Name: "Fern", Price: 9.5},
		domain.Product{ID: "p2", Name: "Monstera", Price: 24.99},
	)
	identity := idmemory.NewStore(
		domain.UserProfile{ID: "u1", Name: "Alex Morgan", Email: "alex@example.com", Role: "client"},
	)
	images := imagesfs.NewStore(t.TempDir(), "/uploads")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := app.NewService(repo, catalog, identity, images,
		events.NewNoopBus(), idemmemory.NewStore(), logger, m)

	return &fixture{service: service, repo: repo}
}

func (f *fixture) seedOrder(t *testing.T, status domain.OrderStatus) domain.Order {
	t.Helper()

	order := domain.Order{
		ID:     "order-" + string(status),
		UserID: owner.ID,
		Items: []domain.OrderItem{
			{PlantID: "p1", Quantity: 2, Price: 9.5, Name: "Fern"},
		},
		Total:       19.0,
		Status:      status,
		Phone:       "+1 555 0100",
		SocialMedia: []domain.SocialMediaEntry{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := f.repo.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return order
}

func validInput() app.OrderInput {
	return app.OrderInput{
		Items: []domain.RequestedItem{{PlantID: "p2", Quantity: 1}},
		Phone: "+1 555 0199",
	}
}

func TestCreateOrder(t *testing.T) {
	t.Run("persists a pending order retrievable by id", func(t *testing.T) {
		f := newFixture(t)

		order, err := f.service.CreateOrder(context.Background(), owner, app.OrderInput{
			Items: []domain.RequestedItem{{PlantID: "p1", Quantity: 2}},
			Phone: "+1 555 0100",
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		stored, err := f.service.GetOrder(context.Background(), owner, order.ID)
		if err != nil {
			t.Fatalf("expected stored order, got: %v", err)
		}
		if stored.Status != domain.StatusPending {
			t.Errorf("expected pending status, got %s", stored.Status)
		}
		if stored.Total != 19.0 {
			t.Errorf("expected total 19.0, got %v", stored.Total)
		}
	})

	t.Run("rejects an all-invalid item list without persisting", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CreateOrder(context.Background(), owner, app.OrderInput{
			Items: []domain.RequestedItem{{PlantID: "ghost", Quantity: 1}},
			Phone: "+1 555 0100",
		})
		if !errors.Is(err, domain.ErrNoValidItems) {
			t.Fatalf("expected ErrNoValidItems, got %v", err)
		}

		orders, err := f.service.ListAllOrders(context.Background())
		if err != nil {
			t.Fatalf("expected list to succeed, got: %v", err)
		}
		if len(orders) != 0 {
			t.Errorf("expected no persisted orders, got %d", len(orders))
		}
	})
}

func TestGetOrder(t *testing.T) {
	t.Run("distinguishes not-found from forbidden", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		if _, err := f.service.GetOrder(context.Background(), owner, "missing"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := f.service.GetOrder(context.Background(), stranger, order.ID); !errors.Is(err, app.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		if _, err := f.service.GetOrder(context.Background(), admin, order.ID); err != nil {
			t.Errorf("expected admin read to succeed, got %v", err)
		}
	})

	t.Run("enriches the order with owner identity", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		got, err := f.service.GetOrder(context.Background(), owner, order.ID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.UserName != "Alex Morgan" || got.UserEmail != "alex@example.com" {
			t.Errorf("expected identity enrichment, got %q / %q", got.UserName, got.UserEmail)
		}
	})

	t.Run("substitutes placeholders when the owner no longer resolves", func(t *testing.T) {
		f := newFixture(t)
		order := domain.Order{
			ID:     "orphan",
			UserID: "deleted-user",
			Items:  []domain.OrderItem{{PlantID: "p1", Quantity: 1, Price: 9.5, Name: "Fern"}},
			Total:  9.5,
			Status: domain.StatusPending,
			Phone:  "555",
		}
		if err := f.repo.Create(context.Background(), order); err != nil {
			t.Fatalf("failed to seed order: %v", err)
		}

		got, err := f.service.GetOrder(context.Background(), admin, order.ID)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.UserName != "Unknown User" || got.UserEmail != "" {
			t.Errorf("expected placeholder identity, got %q / %q", got.UserName, got.UserEmail)
		}
	})
}

func TestUpdateOrder(t *testing.T) {
	t.Run("recomputes items and total from the catalog", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		updated, err := f.service.UpdateOrder(context.Background(), owner, order.ID, validInput())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(updated.Items) != 1 || updated.Items[0].Name != "Monstera" {
			t.Errorf("expected Monstera snapshot, got %+v", updated.Items)
		}
		if updated.Total != 24.99 {
			t.Errorf("expected total 24.99, got %v", updated.Total)
		}
	})

	t.Run("always fails once the order left pending", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusConfirmed)

		for _, actor := range []app.Actor{owner, admin} {
			if _, err := f.service.UpdateOrder(context.Background(), actor, order.ID, validInput()); !errors.Is(err, app.ErrNotEditable) {
				t.Errorf("actor %s: expected ErrNotEditable, got %v", actor.ID, err)
			}
		}
	})

	t.Run("rejects non-owner non-admin actors", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		if _, err := f.service.UpdateOrder(context.Background(), stranger, order.ID, validInput()); !errors.Is(err, app.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("rejects when every new line is invalid", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		input := validInput()
		input.Items = []domain.RequestedItem{{PlantID: "ghost", Quantity: 1}}
		if _, err := f.service.UpdateOrder(context.Background(), owner, order.ID, input); !errors.Is(err, domain.ErrNoValidItems) {
			t.Errorf("expected ErrNoValidItems, got %v", err)
		}

		// The stored order is untouched by the rejected update.
		stored, err := f.service.GetOrder(context.Background(), owner, order.ID)
		if err != nil {
			t.Fatalf("expected order to still exist, got: %v", err)
		}
		if stored.Items[0].Name != "Fern" {
			t.Errorf("expected original items preserved, got %+v", stored.Items)
		}
	})

	t.Run("keeps the untouched social entry's image", func(t *testing.T) {
		f := newFixture(t)

		created, err := f.service.CreateOrder(context.Background(), owner, app.OrderInput{
			Items: []domain.RequestedItem{{PlantID: "p1", Quantity: 1}},
			Phone: "555",
			SocialMedia: []commands.SocialMediaInput{
				{Type: "facebook", Image: "data:image/png;base64,Zmlyc3Q="},
				{Type: "instagram", Image: "data:image/png;base64,c2Vjb25k"},
			},
		})
		if err != nil {
			t.Fatalf("expected create to succeed, got: %v", err)
		}
		previousURL := created.SocialMedia[1].ImageURL
		if previousURL == "" {
			t.Fatal("expected index 1 to carry an image after create")
		}

		updated, err := f.service.UpdateOrder(context.Background(), owner, created.ID, app.OrderInput{
			Items: []domain.RequestedItem{{PlantID: "p1", Quantity: 1}},
			Phone: "555",
			SocialMedia: []commands.SocialMediaInput{
				{Type: "facebook", Image: "data:image/jpeg;base64,ZnJlc2g="},
				{Type: "instagram"},
			},
		})
		if err != nil {
			t.Fatalf("expected update to succeed, got: %v", err)
		}

		if updated.SocialMedia[0].ImageURL == created.SocialMedia[0].ImageURL {
			t.Errorf("expected index 0 image to be replaced, still %q", updated.SocialMedia[0].ImageURL)
		}
		if updated.SocialMedia[1].ImageURL != previousURL {
			t.Errorf("expected index 1 image preserved as %q, got %q", previousURL, updated.SocialMedia[1].ImageURL)
		}
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	t.Run("advances the order forward", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		updated, err := f.service.UpdateOrderStatus(context.Background(), order.ID, "confirmed")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if updated.Status != domain.StatusConfirmed {
			t.Errorf("expected confirmed, got %s", updated.Status)
		}

		stored, _ := f.service.GetOrder(context.Background(), admin, order.ID)
		if stored.Status != domain.StatusConfirmed {
			t.Errorf("expected persisted status confirmed, got %s", stored.Status)
		}
	})

	t.Run("rejects statuses outside the enumerated set", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		if _, err := f.service.UpdateOrderStatus(context.Background(), order.ID, "refunded"); !errors.Is(err, domain.ErrUnknownStatus) {
			t.Errorf("expected ErrUnknownStatus, got %v", err)
		}
	})

	t.Run("rejects backward transitions", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusDelivered)

		if _, err := f.service.UpdateOrderStatus(context.Background(), order.ID, "pending"); !errors.Is(err, app.ErrStatusRegression) {
			t.Errorf("expected ErrStatusRegression, got %v", err)
		}
	})

	t.Run("reports not-found for unknown orders", func(t *testing.T) {
		f := newFixture(t)

		if _, err := f.service.UpdateOrderStatus(context.Background(), "missing", "confirmed"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRemoveOrder(t *testing.T) {
	t.Run("rejects non-owner non-admin actors", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		if err := f.service.RemoveOrder(context.Background(), stranger, order.ID); !errors.Is(err, app.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("owner hard-deletes a pending order", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusPending)

		if err := f.service.RemoveOrder(context.Background(), owner, order.ID); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if _, err := f.service.GetOrder(context.Background(), admin, order.ID); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected order gone, got %v", err)
		}
	})

	t.Run("owner soft-hides a delivered order", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusDelivered)

		if err := f.service.RemoveOrder(context.Background(), owner, order.ID); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		// Still retrievable by id and visible to admins.
		stored, err := f.service.GetOrder(context.Background(), admin, order.ID)
		if err != nil {
			t.Fatalf("expected order to remain, got: %v", err)
		}
		if !stored.DeletedByUser {
			t.Error("expected deletedByUser flag to be set")
		}

		mine, err := f.service.ListMyOrders(context.Background(), owner)
		if err != nil {
			t.Fatalf("expected list to succeed, got: %v", err)
		}
		for _, o := range mine {
			if o.ID == order.ID {
				t.Error("expected soft-hidden order excluded from owner listing")
			}
		}

		all, err := f.service.ListAllOrders(context.Background())
		if err != nil {
			t.Fatalf("expected list to succeed, got: %v", err)
		}
		found := false
		for _, o := range all {
			if o.ID == order.ID {
				found = true
			}
		}
		if !found {
			t.Error("expected soft-hidden order still present in admin listing")
		}
	})

	t.Run("owner is rejected for in-flight orders", func(t *testing.T) {
		f := newFixture(t)

		for _, status := range []domain.OrderStatus{domain.StatusConfirmed, domain.StatusShipped} {
			order := f.seedOrder(t, status)
			if err := f.service.RemoveOrder(context.Background(), owner, order.ID); !errors.Is(err, app.ErrNotRemovable) {
				t.Errorf("status %s: expected ErrNotRemovable, got %v", status, err)
			}
		}
	})

	t.Run("admin hard-deletes regardless of status", func(t *testing.T) {
		f := newFixture(t)

		for _, status := range []domain.OrderStatus{
			domain.StatusPending, domain.StatusConfirmed, domain.StatusShipped, domain.StatusDelivered,
		} {
			order := f.seedOrder(t, status)
			if err := f.service.RemoveOrder(context.Background(), admin, order.ID); err != nil {
				t.Errorf("status %s: expected admin delete to succeed, got %v", status, err)
			}
			if _, err := f.repo.GetByID(context.Background(), order.ID); !errors.Is(err, ports.ErrNotFound) {
				t.Errorf("status %s: expected order gone, got %v", status, err)
			}
		}
	})
}

func TestRemoveOrderPermanent(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, domain.StatusShipped)

	if err := f.service.RemoveOrderPermanent(context.Background(), order.ID); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, err := f.repo.GetByID(context.Background(), order.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected order gone, got %v", err)
	}

	if err := f.service.RemoveOrderPermanent(context.Background(), "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListMyOrders(t *testing.T) {
	t.Run("returns newest first", func(t *testing.T) {
		f := newFixture(t)

		older := domain.Order{
			ID: "old", UserID: owner.ID, Status: domain.StatusPending, Phone: "555",
			Items:     []domain.OrderItem{{PlantID: "p1", Quantity: 1, Price: 9.5, Name: "Fern"}},
			Total:     9.5,
			CreatedAt: time.Now().UTC().Add(-time.Hour),
		}
		newer := older
		newer.ID = "new"
		newer.CreatedAt = time.Now().UTC()

		for _, o := range []domain.Order{older, newer} {
			if err := f.repo.Create(context.Background(), o); err != nil {
				t.Fatalf("failed to seed order: %v", err)
			}
		}

		mine, err := f.service.ListMyOrders(context.Background(), owner)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(mine) != 2 || mine[0].ID != "new" || mine[1].ID != "old" {
			t.Errorf("expected newest first ordering, got %+v", mine)
		}
	})
}

func TestGetReceipt(t *testing.T) {
	t.Run("renders only for delivered orders", func(t *testing.T) {
		f := newFixture(t)

		pending := f.seedOrder(t, domain.StatusPending)
		if _, err := f.service.GetReceipt(context.Background(), owner, pending.ID); !errors.Is(err, app.ErrReceiptNotReady) {
			t.Errorf("expected ErrReceiptNotReady, got %v", err)
		}

		delivered := f.seedOrder(t, domain.StatusDelivered)
		r, err := f.service.GetReceipt(context.Background(), admin, delivered.ID)
		if err != nil {
			t.Fatalf("expected receipt, got: %v", err)
		}
		if !bytes.Contains(r.HTML, []byte("Alex Morgan")) {
			t.Error("expected receipt to carry the enriched buyer name")
		}
		if !bytes.Contains(r.HTML, []byte("Store Admin")) {
			t.Error("expected receipt to carry the acting admin name")
		}
	})

	t.Run("rejects non-owner non-admin actors", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusDelivered)

		if _, err := f.service.GetReceipt(context.Background(), stranger, order.ID); !errors.Is(err, app.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("is idempotent for the same order and actor", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t, domain.StatusDelivered)

		first, err := f.service.GetReceipt(context.Background(), owner, order.ID)
		if err != nil {
			t.Fatalf("expected receipt, got: %v", err)
		}
		second, err := f.service.GetReceipt(context.Background(), owner, order.ID)
		if err != nil {
			t.Fatalf("expected receipt, got: %v", err)
		}
		if !bytes.Equal(first.HTML, second.HTML) {
			t.Error("expected byte-identical receipts for identical input")
		}
	})
}
