package location

import (
	"context"
	"errors"
)

// ErrLocationUnavailable is returned by providers that are working but have no usable fix.
var ErrLocationUnavailable = errors.New("location currently unavailable")

// Provider interface defines the methods for location providers
type Provider interface {
	GetLocation(ctx context.Context) (Fix, error)
	Close() error
}

// Observer receives updates from a Source.
type Observer interface {
	OnFix(fix Fix)
	OnAvailability(available bool)
}
