package suncalc

import "time"

// Río Cuarto, Córdoba
const (
	testLatitude  = -33.123
	testLongitude = -64.3493
)

var argentina = time.FixedZone("ART", -3*60*60)

// summerDate returns a December day, when the sun rises before 07:00 local time.
func summerDate(hour, minute int) time.Time {
	return time.Date(2024, 12, 21, hour, minute, 0, 0, argentina)
}
