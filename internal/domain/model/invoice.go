package model

import (
	"math"
	"time"
)

// DefaultExpireMinutes is the retention applied when callers don't specify one (30 days).
const DefaultExpireMinutes = 43200

// MaxExpireMinutes is the largest retention whose duration fits time.Duration.
const MaxExpireMinutes = math.MaxInt64 / int64(time.Minute)

// ValidRetention reports whether minutes is an accepted retention.
func ValidRetention(minutes int) bool {
	return minutes >= 0 && int64(minutes) <= MaxExpireMinutes
}

// Invoice is the durable metadata of a rendered invoice artifact.
type Invoice struct {
	ID         string
	OrderID    int64
	CustomerID int64
	FileURL    string
	CreatedAt  time.Time
	ExpireAt   time.Time
}

// Expired reports whether the invoice is eligible for reclamation at now.
func (i Invoice) Expired(now time.Time) bool {
	return !i.ExpireAt.After(now)
}

// InvoiceStats aggregates lifecycle counters of a running process.
type InvoiceStats struct {
	Generated      int64
	Reused         int64
	Dispatched     int64
	DispatchFailed int64
	Reclaimed      int64
	ReclaimFailed  int64
}
