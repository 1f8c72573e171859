package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus captures the fulfillment lifecycle of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
)

// MaxSocialMedia caps how many social contact entries an order carries.
const MaxSocialMedia = 2

var (
	ErrNoValidItems  = errors.New("order requires at least one valid item")
	ErrPhoneRequired = errors.New("phone is required")
	ErrUnknownStatus = errors.New("unknown order status")
)

var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// ParseStatus validates a raw status string against the enumerated set.
func ParseStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(raw))
	if _, ok := statusRank[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return status, nil
}

// CanAdvanceTo reports whether next is a forward move in the lifecycle.
// Skipping stages is allowed, moving backward is not.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	current, ok := statusRank[s]
	if !ok {
		return false
	}
	target, ok := statusRank[next]
	if !ok {
		return false
	}
	return target >= current
}

// Product is a catalog entry as seen at order time.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// UserProfile is the identity projection used for order enrichment.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// OrderItem is a price-and-name snapshot of a catalog product taken at
// order time. It never changes when the catalog does.
type OrderItem struct {
	PlantID  string  `json:"plantId"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Name     string  `json:"name"`
}

// LineTotal is price times quantity for this snapshot line.
func (i OrderItem) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SocialMediaEntry is a buyer-supplied contact channel. ImageURL is empty
// until an uploaded proof image has been stored.
type SocialMediaEntry struct {
	Type     string `json:"type"`
	Link     string `json:"link"`
	ImageURL string `json:"imageUrl"`
}

// Order represents a purchase snapshotting chosen plants, their price at
// purchase time, and a fulfillment status.
type Order struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	Items         []OrderItem        `json:"items"`
	Total         float64            `json:"total"`
	Status        OrderStatus        `json:"status"`
	Phone         string             `json:"phone"`
	SocialMedia   []SocialMediaEntry `json:"socialMedia"`
	DeletedByUser bool               `json:"deletedByUser"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	// Enriched from the identity accessor on reads, never persisted.
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoValidItems
	}
	if strings.TrimSpace(o.Phone) == "" {
		return ErrPhoneRequired
	}
	if len(o.SocialMedia) > MaxSocialMedia {
		return fmt.Errorf("at most %d social media entries allowed", MaxSocialMedia)
	}
	for _, item := range o.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("item %s: quantity must be at least 1", item.PlantID)
		}
		if item.Price < 0 {
			return fmt.Errorf("item %s: price must not be negative", item.PlantID)
		}
	}
	return nil
}

// Editable reports whether item/contact mutation is still allowed.
func (o Order) Editable() bool {
	return o.Status == StatusPending
}

// OwnedBy reports whether the given user owns this order.
func (o Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}

// RequestedItem is a caller-supplied order line before catalog resolution.
type RequestedItem struct {
	PlantID  string `json:"plantId"`
	Quantity int    `json:"quantity"`
}

// BuildItems resolves requested lines against a catalog snapshot.
// Lines referencing unknown products or carrying a non-positive quantity
// are skipped, not rejected; callers must not assume a 1:1 correspondence
// between requested and accepted lines. Skipped lines are returned for
// diagnostics.
func BuildItems(catalog []Product, requested []RequestedItem) (accepted []OrderItem, skipped []RequestedItem) {
	byID := make(map[string]Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	for _, line := range requested {
		product, ok := byID[line.PlantID]
		if !ok || line.Quantity < 1 {
			skipped = append(skipped, line)
			continue
		}
		accepted = append(accepted, OrderItem{
			PlantID:  line.PlantID,
			Quantity: line.Quantity,
			Price:    product.Price,
			Name:     product.Name,
		})
	}
	return accepted, skipped
}

// ItemsTotal sums price times quantity over items, rounded to 2 decimals.
func ItemsTotal(items []OrderItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2).InexactFloat64()
}
