// Package suncalc classifies a moment at a position as night, dawn, day or dusk.
// Amphibian calling activity depends strongly on it, so every result is tagged.
package suncalc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// Daylight is the light phase at a moment.
type Daylight string

const (
	Night   Daylight = "night"
	Dawn    Daylight = "dawn" // civil dawn to sunrise
	Day     Daylight = "day"
	Dusk    Daylight = "dusk" // sunset to civil dusk
	Unknown Daylight = ""
)

// SunEventTimes holds the sun events of one day in the calculator's zone.
type SunEventTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

type cacheKey struct {
	date     string
	lat, lng int64 // coordinates rounded to 0.01 degrees
}

// SunCalc computes and caches sun events per day and position.
type SunCalc struct {
	zone  *time.Location
	cache map[cacheKey]SunEventTimes
	lock  sync.RWMutex
}

// NewSunCalc returns a calculator reporting times in zone. nil means UTC.
func NewSunCalc(zone *time.Location) *SunCalc {
	if zone == nil {
		zone = time.UTC
	}
	return &SunCalc{
		zone:  zone,
		cache: make(map[cacheKey]SunEventTimes),
	}
}

// GetSunEventTimes returns the sun events for the calendar day of date in the calculator's zone.
func (sc *SunCalc) GetSunEventTimes(latitude, longitude float64, date time.Time) (SunEventTimes, error) {
	local := date.In(sc.zone)
	key := cacheKey{
		date: local.Format(time.DateOnly),
		lat:  int64(math.Round(latitude * 100)),
		lng:  int64(math.Round(longitude * 100)),
	}

	sc.lock.RLock()
	times, ok := sc.cache[key]
	sc.lock.RUnlock()
	if ok {
		return times, nil
	}

	times, err := sc.calculate(astral.Observer{Latitude: latitude, Longitude: longitude}, local)
	if err != nil {
		return SunEventTimes{}, err
	}

	sc.lock.Lock()
	sc.cache[key] = times
	sc.lock.Unlock()
	return times, nil
}

func (sc *SunCalc) calculate(observer astral.Observer, local time.Time) (SunEventTimes, error) {
	day := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, sc.zone)

	civilDawn, err := astral.Dawn(observer, day, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}
	sunrise, err := astral.Sunrise(observer, day)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(observer, day)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}
	civilDusk, err := astral.Dusk(observer, day, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	times := SunEventTimes{
		CivilDawn: civilDawn.In(sc.zone),
		Sunrise:   sunrise.In(sc.zone),
		Sunset:    sunset.In(sc.zone),
		CivilDusk: civilDusk.In(sc.zone),
	}

	// events are computed per UTC day; far from UTC they can land on a neighbouring day
	if times.Sunset.Before(times.Sunrise) {
		times.Sunset = times.Sunset.Add(24 * time.Hour)
	}
	if times.CivilDusk.Before(times.Sunset) {
		times.CivilDusk = times.CivilDusk.Add(24 * time.Hour)
	}
	if times.CivilDawn.After(times.Sunrise) {
		times.CivilDawn = times.CivilDawn.Add(-24 * time.Hour)
	}
	return times, nil
}

// DaylightAt classifies at for the given position. Positions where the sun
// does not rise or set that day yield Unknown and an error.
func (sc *SunCalc) DaylightAt(latitude, longitude float64, at time.Time) (Daylight, error) {
	times, err := sc.GetSunEventTimes(latitude, longitude, at)
	if err != nil {
		return Unknown, err
	}

	switch {
	case at.Before(times.CivilDawn):
		return Night, nil
	case at.Before(times.Sunrise):
		return Dawn, nil
	case at.Before(times.Sunset):
		return Day, nil
	case at.Before(times.CivilDusk):
		return Dusk, nil
	default:
		return Night, nil
	}
}
