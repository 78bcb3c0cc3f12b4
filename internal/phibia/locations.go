package phibia

import (
	"context"
	"net/http"
	"time"
)

// RecordedLocation is one marker from /ubicaciones.
type RecordedLocation struct {
	Latitude   float64 `json:"latitud"`
	Longitude  float64 `json:"longitud"`
	Name       string  `json:"nombre"`
	RecordedAt string  `json:"fecha_grabacion,omitempty"`
}

// Time parses RecordedAt.
func (l *RecordedLocation) Time() (time.Time, bool) {
	return parseBackendTime(l.RecordedAt)
}

// Locations lists where species were recorded.
func (c *Client) Locations(ctx context.Context) ([]RecordedLocation, error) {
	var out []RecordedLocation
	if err := c.doJSON(ctx, "list_locations", http.MethodGet, c.endpoint("ubicaciones"), nil, &out, false); err != nil {
		return nil, err
	}
	if out == nil {
		out = []RecordedLocation{}
	}
	return out, nil
}
