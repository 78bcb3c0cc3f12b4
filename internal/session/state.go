// Package session runs one record-or-upload to prediction cycle at a time.
//
// A Session owns the microphone while recording, resolves the position in
// the background, submits the clip and keeps the outcome until it is reset.
// Every transition is published to subscribers as an immutable Snapshot.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/myaudio"
)

// Phase is the session state.
type Phase int

const (
	// PhaseIdle means nothing is held and nothing is pending.
	PhaseIdle Phase = iota
	// PhaseRecording means the microphone is open.
	PhaseRecording
	// PhaseProcessing means a prediction request is in flight.
	PhaseProcessing
	// PhaseHasResult means the last prediction succeeded.
	PhaseHasResult
	// PhaseErrored means the cycle failed; ErrorMessage says why.
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	case PhaseHasResult:
		return "has_result"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for candidate := PhaseIdle; candidate <= PhaseErrored; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session phase %q", text)
}

// Source tells where the submitted audio came from.
type Source string

const (
	SourceMicrophone Source = "microphone"
	SourceUpload     Source = "upload"
)

var (
	// ErrInvalidTransition is returned when an operation is not valid in the current phase.
	ErrInvalidTransition = errors.NewStd("invalid session transition")
	// ErrClosed is returned after Close.
	ErrClosed = errors.NewStd("session closed")
)

// Result is a successful prediction.
type Result struct {
	ID          string                `json:"id"`
	Label       string                `json:"label"`        // raw model label
	SpeciesID   int                   `json:"species_id"`   // 1-11, 0 when unknown
	SpeciesName string                `json:"species_name"` // scientific name as labelled
	CommonName  string                `json:"common_name,omitempty"`
	Description string                `json:"description,omitempty"`
	Confidence  *float64              `json:"confidence,omitempty"` // percent
	Location    *geolocation.Location `json:"location,omitempty"`   // what was sent, nil when omitted
	Source      Source                `json:"source"`
	Filename    string                `json:"filename"`
	Duration    time.Duration         `json:"duration"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`
}

// DisplayName returns the species name with underscores as spaces.
func (r *Result) DisplayName() string {
	return strings.ReplaceAll(r.SpeciesName, "_", " ")
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Confidence != nil {
		v := *r.Confidence
		cp.Confidence = &v
	}
	if r.Location != nil {
		loc := *r.Location
		cp.Location = &loc
	}
	return &cp
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID              string                 `json:"id,omitempty"` // cycle id, empty when idle
	Phase           Phase                  `json:"phase"`
	Generation      uint64                 `json:"generation"`
	Source          Source                 `json:"source,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	Result          *Result                `json:"result,omitempty"`
	ResultAt        time.Time              `json:"result_at"`
	ErrorMessage    string                 `json:"error,omitempty"`
	Err             error                  `json:"-"`
	Location        *geolocation.Location  `json:"location,omitempty"`
	LocationError   string                 `json:"location_error,omitempty"`
	LocationPending bool                   `json:"location_pending"`
	Level           myaudio.AudioLevelData `json:"level"`
}
