package geolocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// Adapter applies the one-shot timeout and fix caching to a Provider.
type Adapter struct {
	provider   Provider
	maximumAge time.Duration
	now        func() time.Time

	mu   sync.Mutex
	last *Location
	at   time.Time
}

// NewAdapter wraps provider. A zero maximumAge disables caching.
func NewAdapter(provider Provider, maximumAge time.Duration) *Adapter {
	return &Adapter{
		provider:   provider,
		maximumAge: maximumAge,
		now:        time.Now,
	}
}

// CurrentLocation implements Locator. A zero timeout uses DefaultTimeout.
func (a *Adapter) CurrentLocation(ctx context.Context, timeout time.Duration) (Location, error) {
	if a.provider == nil {
		return Location{}, errors.New(ErrUnsupported).
			Component("geolocation").
			Category(errors.CategoryGeolocation).
			Build()
	}
	if cached, ok := a.cached(); ok {
		return cached, nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	locateCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := a.now()
	loc, err := a.provider.Locate(locateCtx)
	if err != nil {
		classified := a.classify(ctx, err)
		getLogger().Debug("location lookup failed",
			logger.String("provider", a.provider.Name()),
			logger.Duration("elapsed", a.now().Sub(start)),
			logger.Error(classified))
		return Location{}, classified
	}

	a.mu.Lock()
	a.last = &loc
	a.at = a.now()
	a.mu.Unlock()

	return loc, nil
}

// Invalidate drops the cached fix.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	a.last = nil
	a.mu.Unlock()
}

func (a *Adapter) cached() (Location, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil || a.maximumAge <= 0 || a.now().Sub(a.at) > a.maximumAge {
		return Location{}, false
	}
	return *a.last, true
}

// classify maps provider errors onto the package sentinels. Cancellation of
// the caller's context is returned unchanged so callers can tell it apart.
func (a *Adapter) classify(parent context.Context, err error) error {
	if parent.Err() != nil && errors.Is(err, context.Canceled) {
		return err
	}
	for _, sentinel := range []error{ErrPermissionDenied, ErrUnsupported, ErrTimeout, ErrUnavailable} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	sentinel, category := ErrUnavailable, errors.CategoryGeolocation
	if errors.Is(err, context.DeadlineExceeded) {
		sentinel, category = ErrTimeout, errors.CategoryTimeout
	}
	return errors.New(fmt.Errorf("%w: %w", sentinel, err)).
		Component("geolocation").
		Category(category).
		Context("provider", a.provider.Name()).
		Build()
}
