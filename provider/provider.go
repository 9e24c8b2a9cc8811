// Package provider is the byte store behind snapshot.Store.
//
// Values must come back exactly as they were written: no framing, no
// re-encoding. Snapshot frames are validated on load and a store that alters
// them will see every load rejected as corrupt.
package provider

import (
	"context"
	"time"
)

// Provider is a concurrency-safe byte store with optional TTLs.
type Provider interface {
	// Get returns (value, true, nil) on a hit and (nil, false, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. cost is a hint for admission-based stores; ttl <= 0
	// means no expiry where the store supports it. ok=false reports a write
	// dropped by admission control.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
