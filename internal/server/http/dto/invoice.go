package dto

import "time"

// InvoiceResponse is the public representation of an invoice record.
type InvoiceResponse struct {
	ID         string    `json:"id"`
	OrderID    int64     `json:"orderId"`
	CustomerID int64     `json:"customerId"`
	FileURL    string    `json:"fileUrl"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpireAt   time.Time `json:"expireAt"`
}

// GenerateResponse is returned once an invoice was generated synchronously.
type GenerateResponse struct {
	Message string          `json:"message"`
	Invoice InvoiceResponse `json:"invoice"`
}

// AcceptedResponse is returned when generation was scheduled in the background.
type AcceptedResponse struct {
	Message string `json:"message"`
	OrderID int64  `json:"orderId"`
}

// InvoiceListResponse wraps a list of invoices with its size.
type InvoiceListResponse struct {
	Count    int               `json:"count"`
	Invoices []InvoiceResponse `json:"invoices"`
}

// CheckResponse reports whether an order has an invoice.
type CheckResponse struct {
	OrderID    int64 `json:"orderId"`
	HasInvoice bool  `json:"hasInvoice"`
}

// CleanupResponse reports the outcome of an on-demand sweep.
type CleanupResponse struct {
	Message   string `json:"message"`
	Reclaimed int    `json:"reclaimed"`
}

// StatsResponse exposes lifecycle counters.
type StatsResponse struct {
	Generated      int64 `json:"generated"`
	Reused         int64 `json:"reused"`
	Dispatched     int64 `json:"dispatched"`
	DispatchFailed int64 `json:"dispatchFailed"`
	Reclaimed      int64 `json:"reclaimed"`
	ReclaimFailed  int64 `json:"reclaimFailed"`
}

// ErrorResponse carries a human readable failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
