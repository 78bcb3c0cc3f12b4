// Package geolocation resolves the device position attached to a recording.
//
// Providers produce a single fix. The Adapter wraps a provider with a timeout,
// maps its failures onto a small error taxonomy and reuses a recent fix.
// A location failure is never fatal: callers record it and carry on without
// coordinates.
package geolocation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// Location failures.
var (
	ErrUnsupported      = errors.NewStd("geolocation is not supported")
	ErrPermissionDenied = errors.NewStd("geolocation permission denied")
	ErrUnavailable      = errors.NewStd("position unavailable")
	ErrTimeout          = errors.NewStd("geolocation timed out")
)

// Default one-shot settings.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaximumAge = 60 * time.Second
)

// Location is a single position fix.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"` // metres, zero when unknown
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// String formats the position as "lat, lng" with six decimals.
func (l Location) String() string {
	return FormatCoordinate(l.Latitude) + ", " + FormatCoordinate(l.Longitude)
}

// Valid reports whether the coordinates lie within WGS84 bounds.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// FormatCoordinate renders a coordinate for form fields and display.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Locator returns the current position.
type Locator interface {
	// CurrentLocation fails with ErrUnsupported, ErrPermissionDenied,
	// ErrUnavailable or ErrTimeout.
	CurrentLocation(ctx context.Context, timeout time.Duration) (Location, error)
}

// Provider is one source of position fixes.
type Provider interface {
	Name() string
	Locate(ctx context.Context) (Location, error)
}

// ParseCoordinates validates a latitude/longitude pair from user input.
func ParseCoordinates(lat, lng float64) (Location, error) {
	loc := Location{Latitude: lat, Longitude: lng, Source: "manual", Timestamp: time.Now()}
	if !loc.Valid() {
		return Location{}, errors.New(fmt.Errorf("coordinates out of range: %s", loc)).
			Component("geolocation").
			Category(errors.CategoryValidation).
			Build()
	}
	return loc, nil
}

func getLogger() logger.Logger {
	return logger.Global().Module("geolocation")
}
