// Package receipt renders a self-contained HTML receipt for a delivered
// order. Rendering is pure: the output depends only on the order and the
// actor name passed in.
package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/forestplant/backend/internal/orders/domain"
)

// Receipt is a rendered receipt document.
type Receipt struct {
	// Ref is the short order reference embedded in the document, the
	// first 8 characters of the order id.
	Ref  string
	HTML []byte
}

// Filename is the suggested download name for the document.
func (r *Receipt) Filename() string {
	return fmt.Sprintf("receipt-%s.html", r.Ref)
}

type itemRow struct {
	Name      string
	Quantity  int
	Price     string
	LineTotal string
}

type contactRow struct {
	Label string
	Value string
}

type view struct {
	Ref         string
	Date        string
	Status      string
	Customer    string
	ProcessedBy string
	Items       []itemRow
	Total       string
	Contacts    []contactRow
}

// Render produces the receipt for the given order. Line totals are
// recomputed from the stored item snapshot, never from the current
// catalog, and all amounts carry exactly two decimal places.
func Render(order domain.Order, processedBy string) (*Receipt, error) {
	customer := order.UserName
	if customer == "" {
		customer = "Customer"
	}

	v := view{
		Ref:         shortRef(order.ID),
		Date:        order.CreatedAt.Format("January 2, 2006"),
		Status:      string(order.Status),
		Customer:    customer,
		ProcessedBy: processedBy,
		Total:       decimal.NewFromFloat(order.Total).StringFixed(2),
	}

	for _, item := range order.Items {
		v.Items = append(v.Items, itemRow{
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     decimal.NewFromFloat(item.Price).StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}

	if order.Phone != "" {
		v.Contacts = append(v.Contacts, contactRow{Label: "Phone", Value: order.Phone})
	}
	for _, s := range order.SocialMedia {
		v.Contacts = append(v.Contacts, contactRow{Label: titleCase(s.Type), Value: s.Link})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("execute receipt template: %w", err)
	}

	return &Receipt{Ref: v.Ref, HTML: buf.Bytes()}, nil
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Receipt - Order #{{.Ref}}</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 40px; background: #f6f9f6; color: #1c2822; }
    .receipt { max-width: 600px; margin: 0 auto; background: white; padding: 40px; border-radius: 12px; box-shadow: 0 2px 12px rgba(45, 122, 90, 0.1); }
    .logo-section { text-align: center; margin-bottom: 32px; padding-bottom: 24px; border-bottom: 2px solid #e5e7eb; }
    .logo-text { font-family: Georgia, serif; font-size: 32px; font-weight: 700; color: #2d7a5a; margin: 0; }
    .subtitle { color: #666; margin: 0 0 32px; font-size: 14px; text-align: center; }
    .section { margin: 24px 0; }
    .section-title { font-weight: 600; color: #2d7a5a; margin-bottom: 12px; font-size: 16px; }
    table { width: 100%; border-collapse: collapse; margin: 16px 0; }
    th { text-align: left; padding: 12px 0; border-bottom: 2px solid #2d7a5a; color: #2d7a5a; font-weight: 600; font-size: 14px; }
    td { font-size: 14px; padding: 8px 0; border-bottom: 1px solid #e5e7eb; }
    .num { text-align: right; }
    .qty { text-align: center; }
    .total-row td { font-weight: 600; font-size: 18px; color: #2d7a5a; padding-top: 16px; border-top: 2px solid #e5e7eb; border-bottom: none; }
    .info { font-size: 14px; line-height: 1.6; color: #444; }
    .info-item { margin: 8px 0; }
    .status { display: inline-block; padding: 4px 12px; border-radius: 999px; background: #2d7a5a; color: white; font-size: 12px; font-weight: 500; }
    .footer { margin-top: 40px; padding-top: 24px; border-top: 1px solid #e5e7eb; text-align: center; color: #666; font-size: 12px; }
    @media print { body { background: white; padding: 0; } .receipt { box-shadow: none; } }
  </style>
</head>
<body>
  <div class="receipt">
    <div class="logo-section">
      <h1 class="logo-text">Forest Plant Store</h1>
    </div>
    <p class="subtitle">Receipt</p>
    <div class="section">
      <div class="info">
        <div class="info-item"><strong>Order ID:</strong> #{{.Ref}}</div>
        <div class="info-item"><strong>Date:</strong> {{.Date}}</div>
        <div class="info-item"><strong>Status:</strong> <span class="status">{{.Status}}</span></div>
        <div class="info-item"><strong>Customer:</strong> {{.Customer}}</div>
        <div class="info-item"><strong>Processed by:</strong> {{.ProcessedBy}}</div>
      </div>
    </div>
    <div class="section">
      <div class="section-title">Items</div>
      <table>
        <thead>
          <tr>
            <th>Item</th>
            <th class="qty">Qty</th>
            <th class="num">Price</th>
            <th class="num">Total</th>
          </tr>
        </thead>
        <tbody>
          {{- range .Items}}
          <tr>
            <td>{{.Name}}</td>
            <td class="qty">{{.Quantity}}</td>
            <td class="num">${{.Price}}</td>
            <td class="num">${{.LineTotal}}</td>
          </tr>
          {{- end}}
          <tr class="total-row">
            <td colspan="3" class="num">Total</td>
            <td class="num">${{.Total}}</td>
          </tr>
        </tbody>
      </table>
    </div>
    {{- if .Contacts}}
    <div class="section">
      <div class="section-title">Contact Information</div>
      <div class="info">
        {{- range .Contacts}}
        <div class="info-item"><strong>{{.Label}}:</strong> {{.Value}}</div>
        {{- end}}
      </div>
    </div>
    {{- end}}
    <div class="footer">Thank you for your order!</div>
  </div>
</body>
</html>
`))
