package renderer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

const emailTemplate = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Invoice #{{.Order.ID}}</title></head>
<body style="font-family: Helvetica, Arial, sans-serif; color: #2d3748;">
<h1>Thank you for your order!</h1>
<p>Hello {{.Order.Customer.FullName}},</p>
<p>Your order has been paid and confirmed. The detailed invoice is attached to this email.</p>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td>Order</td><td><strong>#{{.Order.ID}}</strong></td></tr>
<tr><td>Status</td><td>{{.Order.Status}}</td></tr>
<tr><td>Total</td><td><strong>{{.Total}}</strong></td></tr>
{{- if .Order.PaymentMethod}}
<tr><td>Payment</td><td>{{.Order.PaymentMethod}}</td></tr>
{{- end}}
</table>
{{- if .Order.Items}}
<ul>
{{- range .Order.Items}}
<li>{{.ProductName}} x {{.Quantity}}</li>
{{- end}}
</ul>
{{- end}}
<p>If you have any questions, just reply to this email.</p>
<p>Customer Support Team</p>
</body>
</html>
`

// Composer builds invoice notifications from an HTML template.
type Composer struct {
	tmpl *template.Template
}

type emailData struct {
	Order   model.Order
	Invoice model.Invoice
	Total   string
}

// NewComposer parses the invoice email template.
func NewComposer() (*Composer, error) {
	tmpl, err := template.New("invoice").Parse(emailTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	return &Composer{tmpl: tmpl}, nil
}

// Compose returns the notification announcing invoice for order.
func (c *Composer) Compose(order model.Order, invoice model.Invoice) (model.Notification, error) {
	var body bytes.Buffer
	data := emailData{Order: order, Invoice: invoice, Total: order.TotalAmount.StringFixed(2)}
	if err := c.tmpl.Execute(&body, data); err != nil {
		return model.Notification{}, fmt.Errorf("render email body: %w", err)
	}
	return model.Notification{
		To:             order.Customer.Email,
		Subject:        fmt.Sprintf("Invoice for order #%d", order.ID),
		HTMLBody:       body.String(),
		AttachmentPath: invoice.FileURL,
	}, nil
}
