package geolocation

import (
	"context"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// StaticProvider returns fixed coordinates from configuration.
type StaticProvider struct {
	loc *Location
}

// NewStaticProvider returns a provider for lat/lng. Pass ok=false when no
// position is configured; Locate then reports ErrUnsupported.
func NewStaticProvider(lat, lng float64, ok bool) *StaticProvider {
	if !ok {
		return &StaticProvider{}
	}
	return &StaticProvider{loc: &Location{Latitude: lat, Longitude: lng, Source: "static"}}
}

// Name implements Provider.
func (p *StaticProvider) Name() string { return "static" }

// Locate implements Provider.
func (p *StaticProvider) Locate(ctx context.Context) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	if p.loc == nil {
		return Location{}, errors.New(ErrUnsupported).
			Component("geolocation").
			Category(errors.CategoryGeolocation).
			Context("provider", p.Name()).
			Build()
	}
	loc := *p.loc
	loc.Timestamp = time.Now()
	return loc, nil
}

// DisabledProvider always refuses, as when the user denies location access.
type DisabledProvider struct{}

// Name implements Provider.
func (DisabledProvider) Name() string { return "none" }

// Locate implements Provider.
func (DisabledProvider) Locate(context.Context) (Location, error) {
	return Location{}, errors.New(ErrPermissionDenied).
		Component("geolocation").
		Category(errors.CategoryPermission).
		Context("provider", "none").
		Build()
}

// FallbackProvider tries each provider in order and returns the first fix.
// Permission denials stop the chain.
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider chains providers.
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

// Name implements Provider.
func (f *FallbackProvider) Name() string { return "auto" }

// Locate implements Provider.
func (f *FallbackProvider) Locate(ctx context.Context) (Location, error) {
	var lastErr error = errors.New(ErrUnsupported).
		Component("geolocation").
		Category(errors.CategoryGeolocation).
		Build()

	for _, p := range f.providers {
		loc, err := p.Locate(ctx)
		if err == nil {
			return loc, nil
		}
		if errors.Is(err, ErrPermissionDenied) || ctx.Err() != nil {
			return Location{}, err
		}
		getLogger().Debug("location provider failed, trying next",
			logger.String("provider", p.Name()),
			logger.Error(err))
		lastErr = err
	}
	return Location{}, lastErr
}
