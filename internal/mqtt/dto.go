package mqtt

import (
	"time"

	"github.com/phibia-app/phibia-go/internal/session"
)

// ResultDTO is the JSON payload published for each identification.
// Field names are part of the topic contract consumed by automations.
type ResultDTO struct {
	ID             string   `json:"id"`
	Date           string   `json:"date"` // "2006-01-02" in the station's zone
	Time           string   `json:"time"` // "15:04:05"
	Timestamp      string   `json:"timestamp"`
	Label          string   `json:"label"`
	SpeciesID      int      `json:"speciesId"`
	ScientificName string   `json:"scientificName"`
	CommonName     string   `json:"commonName,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"` // percent
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Source         string   `json:"source"`
	Filename       string   `json:"filename,omitempty"`
	DurationMs     int64    `json:"durationMs,omitempty"`
	Station        string   `json:"station,omitempty"`
}

// NewResultDTO builds the payload for res, formatting times in zone.
func NewResultDTO(res *session.Result, station string, zone *time.Location) *ResultDTO {
	at := res.StartedAt
	if at.IsZero() {
		at = res.CompletedAt
	}
	if zone != nil {
		at = at.In(zone)
	}

	dto := &ResultDTO{
		ID:             res.ID,
		Date:           at.Format(time.DateOnly),
		Time:           at.Format(time.TimeOnly),
		Timestamp:      at.Format(time.RFC3339),
		Label:          res.Label,
		SpeciesID:      res.SpeciesID,
		ScientificName: res.DisplayName(),
		CommonName:     res.CommonName,
		Source:         string(res.Source),
		Filename:       res.Filename,
		DurationMs:     res.Duration.Milliseconds(),
		Station:        station,
	}
	if res.Confidence != nil {
		v := *res.Confidence
		dto.Confidence = &v
	}
	if res.Location != nil {
		lat, lng := res.Location.Latitude, res.Location.Longitude
		dto.Latitude = &lat
		dto.Longitude = &lng
	}
	return dto
}
