package analysis

import (
	"context"
	"fmt"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// newLocator picks the position source: --no-location, then --place, then
// --lat/--lng, then the configured provider.
func (a *Analyzer) newLocator(ctx context.Context, opts Options) (geolocation.Locator, error) {
	maximumAge := a.settings.Location.MaximumAge

	switch {
	case opts.NoLocation:
		return geolocation.NewAdapter(geolocation.DisabledProvider{}, 0), nil

	case opts.Place != "":
		loc, err := a.searchPlace(ctx, opts.Place)
		if err != nil {
			return nil, err
		}
		return geolocation.NewAdapter(geolocation.NewStaticProvider(loc.Latitude, loc.Longitude, true), maximumAge), nil

	case opts.Position != nil:
		loc, err := geolocation.ParseCoordinates(opts.Position.Latitude, opts.Position.Longitude)
		if err != nil {
			return nil, err
		}
		return geolocation.NewAdapter(geolocation.NewStaticProvider(loc.Latitude, loc.Longitude, true), maximumAge), nil

	default:
		return geolocation.NewFromSettings(a.settings, a.HTTP, false), nil
	}
}

// searchPlace resolves a free text place to the best Mapbox match.
func (a *Analyzer) searchPlace(ctx context.Context, query string) (geolocation.Location, error) {
	places, err := a.Mapbox.Search(ctx, query)
	if err != nil {
		return geolocation.Location{}, err
	}
	if len(places) == 0 {
		return geolocation.Location{}, errors.New(fmt.Errorf("no place matches %q", query)).
			Component("analysis").
			Category(errors.CategoryNotFound).
			Build()
	}

	best := places[0]
	a.log.Info("place resolved",
		logger.String("query", query),
		logger.String("place", best.Name),
		logger.Float64("latitude", best.Latitude),
		logger.Float64("longitude", best.Longitude))

	return geolocation.ParseCoordinates(best.Latitude, best.Longitude)
}
