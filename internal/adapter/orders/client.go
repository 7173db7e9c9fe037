package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

// ErrOrderNotFound indicates the orders service doesn't know the order.
var ErrOrderNotFound = errors.New("order not found")

// TooManyRequestsError represents rate limiting signal from the orders service.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// Client exposes read-only access to order snapshots.
type Client interface {
	Fetch(ctx context.Context, orderID int64) (*model.Order, error)
}

// HTTPClient implements Client via HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

type customerPayload struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type itemPayload struct {
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// response mirrors JSON payload from the orders service.
type response struct {
	ID             int64           `json:"id"`
	Customer       customerPayload `json:"customer"`
	Status         string          `json:"status"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Items          []itemPayload   `json:"items"`
	PaymentMethod  string          `json:"paymentMethod"`
	ShippingMethod string          `json:"shippingMethod"`
	OrderDate      time.Time       `json:"orderDate"`
}

// NewHTTPClient creates HTTP orders client with default timeout.
func NewHTTPClient(baseURL string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse orders url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("orders url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Fetch loads the order snapshot together with its customer and line items.
func (c *HTTPClient) Fetch(ctx context.Context, orderID int64) (*model.Order, error) {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/api/orders/", strconv.FormatInt(orderID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var data response
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("decode order %d: %w", orderID, err)
		}
		return data.toModel(), nil
	case http.StatusNotFound, http.StatusNoContent:
		return nil, ErrOrderNotFound
	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, TooManyRequestsError{RetryAfter: retryAfter}
	default:
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("orders request failed", slog.Int64("order_id", orderID), slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, fmt.Errorf("orders service error: %s", resp.Status)
	}
}

func (r response) toModel() *model.Order {
	items := make([]model.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, model.LineItem{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return &model.Order{
		ID: r.ID,
		Customer: model.Customer{
			ID:        r.Customer.ID,
			FirstName: r.Customer.FirstName,
			LastName:  r.Customer.LastName,
			Email:     r.Customer.Email,
		},
		Status:         model.OrderStatus(r.Status),
		TotalAmount:    r.TotalAmount,
		Items:          items,
		PaymentMethod:  r.PaymentMethod,
		ShippingMethod: r.ShippingMethod,
		OrderDate:      r.OrderDate,
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
