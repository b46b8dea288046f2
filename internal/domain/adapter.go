package domain

import "context"

// PlatformAdapter is the execution-side interface to one trading venue.
// Implementations own authentication and order submission; the engine only
// sees fills and latency.
type PlatformAdapter interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelAll(ctx context.Context, marketID string) error
}
