package ports

import (
	"context"

	"github.com/aretw0/companion/pkg/domain"
)

// Dispatcher accepts batches of intents. The store implements it; the
// side-effect executor uses it to deliver follow-up intents.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents ...domain.Intent) error
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(ctx context.Context, intents ...domain.Intent) error

func (f DispatcherFunc) Dispatch(ctx context.Context, intents ...domain.Intent) error {
	return f(ctx, intents...)
}
