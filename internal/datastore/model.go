package datastore

import "time"

// Detection is one locally stored prediction result.
type Detection struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	UUID           string    `gorm:"size:36;uniqueIndex" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	RecordedAt     time.Time `gorm:"index" json:"recorded_at"`
	Source         string    `gorm:"size:16" json:"source"`
	Filename       string    `json:"filename,omitempty"`
	Label          string    `json:"label"`
	SpeciesID      int       `gorm:"index" json:"species_id"`
	ScientificName string    `gorm:"index" json:"scientific_name"`
	CommonName     string    `json:"common_name,omitempty"`
	Confidence     *float64  `json:"confidence,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Address        string    `json:"address,omitempty"`
	Daylight       string    `gorm:"size:8" json:"daylight,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
}

// TableName keeps the table name stable if the struct is renamed.
func (Detection) TableName() string {
	return "detections"
}

// HasLocation reports whether coordinates were stored.
func (d *Detection) HasLocation() bool {
	return d.Latitude != nil && d.Longitude != nil
}

// SpeciesCount is one row of CountBySpecies.
type SpeciesCount struct {
	ScientificName string    `json:"scientific_name"`
	Count          int64     `json:"count"`
	LastSeen       time.Time `json:"last_seen"`
}

// ListOptions filters List. Zero values mean no filter.
type ListOptions struct {
	Species string    // scientific name, exact match
	Since   time.Time // recorded at or after
	Limit   int       // defaults to DefaultListLimit, capped at MaxListLimit
	Offset  int
}
