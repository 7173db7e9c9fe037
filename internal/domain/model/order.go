package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus describes order lifecycle as reported by the upstream orders service.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivery  OrderStatus = "Delivery"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// Invoiceable reports whether an invoice may be issued for the status.
// Comparison ignores case since upstream systems are not consistent about it.
func (s OrderStatus) Invoiceable() bool {
	return strings.EqualFold(string(s), string(OrderStatusPaid)) ||
		strings.EqualFold(string(s), string(OrderStatusCompleted))
}

// Customer is the buyer referenced by an order.
type Customer struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// LineItem is a single purchased product.
type LineItem struct {
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Total returns quantity multiplied by unit price.
func (i LineItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a read-only snapshot of an upstream order.
type Order struct {
	ID             int64
	Customer       Customer
	Status         OrderStatus
	TotalAmount    decimal.Decimal
	Items          []LineItem
	PaymentMethod  string
	ShippingMethod string
	OrderDate      time.Time
}
