package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polkiloo/invoicekeeper/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewHTTPClientValidatesURL(t *testing.T) {
	if _, err := NewHTTPClient("://bad-url", testLogger()); err == nil {
		t.Fatal("expected error for invalid url")
	}
	if _, err := NewHTTPClient("/relative", testLogger()); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestFetchDecodesOrderSnapshot(t *testing.T) {
	const payload = `{
		"id": 42,
		"customer": {"id": 7, "firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"},
		"status": "Paid",
		"totalAmount": "59.90",
		"items": [
			{"productName": "Keyboard", "quantity": 1, "unitPrice": 49.90},
			{"productName": "Cable", "quantity": 2, "unitPrice": "5.00"}
		],
		"paymentMethod": "card",
		"shippingMethod": "courier",
		"orderDate": "2024-03-01T10:00:00Z"
	}`

	var gotPath, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL+"/v1", testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	order, err := client.Fetch(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1/api/orders/42" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotAccept != "application/json" {
		t.Errorf("unexpected accept header %q", gotAccept)
	}
	if order.ID != 42 || order.Customer.ID != 7 || order.Customer.Email != "ada@example.com" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Status != model.OrderStatusPaid {
		t.Errorf("expected Paid status, got %s", order.Status)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("59.90")) {
		t.Errorf("unexpected total %s", order.TotalAmount)
	}
	if len(order.Items) != 2 || order.Items[1].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.RequireFromString("49.9")) {
		t.Errorf("unexpected unit price %s", order.Items[0].UnitPrice)
	}
	if !order.OrderDate.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected order date %v", order.OrderDate)
	}
}

func TestFetchHandlesSpecialStatuses(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		header     http.Header
		wantErr    error
	}{
		{name: "not found", statusCode: http.StatusNotFound, wantErr: ErrOrderNotFound},
		{name: "no content", statusCode: http.StatusNoContent, wantErr: ErrOrderNotFound},
		{name: "too many requests", statusCode: http.StatusTooManyRequests, header: http.Header{"Retry-After": []string{"5"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for key, values := range tt.header {
					for _, v := range values {
						w.Header().Add(key, v)
					}
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			client, err := NewHTTPClient(srv.URL, testLogger())
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			_, err = client.Fetch(context.Background(), 1)
			if tt.statusCode == http.StatusTooManyRequests {
				var tm TooManyRequestsError
				if !errors.As(err, &tm) {
					t.Fatalf("expected TooManyRequestsError, got %v", err)
				}
				if tm.RetryAfter != 5*time.Second {
					t.Fatalf("expected retry after 5s, got %v", tm.RetryAfter)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFetchRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Fetch(context.Background(), 3); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFetchLogsErrorResponses(t *testing.T) {
	called := make(chan struct{}, 1)
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey && a.Value.Any() == slog.LevelError {
			select {
			case called <- struct{}{}:
			default:
			}
		}
		return a
	}})
	logger := slog.New(handler)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, logger)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.Fetch(context.Background(), 123); err == nil {
		t.Fatal("expected error from server")
	}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("expected error log to be written")
	}
}

func TestFetchPropagatesTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client, err := NewHTTPClient(addr, testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Fetch(context.Background(), 9); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Now()
	httpTime := now.Add(2 * time.Second).UTC().Format(http.TimeFormat)

	cases := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "empty", header: "", want: 5 * time.Second},
		{name: "seconds", header: "7", want: 7 * time.Second},
		{name: "http date", header: httpTime, want: 2 * time.Second},
		{name: "fallback", header: "bad", want: 5 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseRetryAfter(tc.header)
			if tc.header == httpTime {
				if got <= 0 || got > 3*time.Second {
					t.Fatalf("unexpected retry duration %v", got)
				}
			} else if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
