package tier

import (
	"context"
	"time"

	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

// Registry maps logical tiers to their physical adapters and owns the
// shared operation timeout applied to every adapter call.
type Registry struct {
	adapters map[models.Tier]Adapter
	timeout  time.Duration
}

// NewRegistry builds a registry over the provided adapters.
func NewRegistry(adapters map[models.Tier]Adapter, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Registry{adapters: adapters, timeout: timeout}
}

// Get returns the adapter for a tier.
func (r *Registry) Get(t models.Tier) (Adapter, error) {
	adapter, ok := r.adapters[t]
	if !ok || adapter == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no adapter configured for tier "+string(t))
	}
	return adapter, nil
}

// Has reports whether a tier is wired.
func (r *Registry) Has(t models.Tier) bool {
	_, ok := r.adapters[t]
	return ok
}

// OperationContext bounds one adapter call with the registry timeout.
func (r *Registry) OperationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}
