// Package presentation turns session snapshots into what the user sees.
// Derive is pure; Render writes the plain text form used by the CLI.
package presentation

import (
	"strconv"
	"time"

	"github.com/phibia-app/phibia-go/internal/session"
)

const (
	// ShadowInterval is how long each silhouette is shown while recording.
	ShadowInterval = 500 * time.Millisecond
	// RevealDelay is how long after a result the species image replaces its shadow.
	RevealDelay = 1500 * time.Millisecond

	// UnknownLocation is shown when no position was attached.
	UnknownLocation = "Ubicación desconocida"

	logoImage = "singleLogo.png"
)

// View holds the display values for one frame.
type View struct {
	Phase       session.Phase `json:"phase"`
	Status      string        `json:"status"`
	ShowSpinner bool          `json:"show_spinner"`
	ShowLogo    bool          `json:"show_logo"`
	Image       string        `json:"image,omitempty"`
	Revealed    bool          `json:"revealed"` // Image is the species, not its shadow

	SpeciesID       int    `json:"species_id,omitempty"`
	SpeciesName     string `json:"species_name,omitempty"` // as labelled by the model
	DisplayName     string `json:"display_name,omitempty"` // SpeciesName with spaces
	CommonName      string `json:"common_name,omitempty"`
	ConfidenceText  string `json:"confidence_text,omitempty"`
	ConfidenceLabel string `json:"confidence_label,omitempty"`

	ErrorText     string `json:"error_text,omitempty"`
	LocationText  string `json:"location_text"`
	Address       string `json:"address,omitempty"` // filled in by callers that geocode
	LocationError string `json:"location_error,omitempty"`

	Level int `json:"level"` // input meter 0-100 while recording
}

// Elapsed returns how long snap has been in its phase as Derive expects it:
// time since the result for PhaseHasResult, since the cycle started otherwise.
func Elapsed(snap *session.Snapshot, now time.Time) time.Duration {
	since := snap.StartedAt
	if snap.Phase == session.PhaseHasResult && !snap.ResultAt.IsZero() {
		since = snap.ResultAt
	}
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return now.Sub(since)
}

// Derive computes the view of snap, elapsed into its phase.
func Derive(snap *session.Snapshot, elapsed time.Duration) View {
	v := View{
		Phase:         snap.Phase,
		Status:        statusText(snap.Phase),
		LocationText:  UnknownLocation,
		LocationError: snap.LocationError,
	}
	if elapsed < 0 {
		elapsed = 0
	}

	if snap.Location != nil {
		v.LocationText = snap.Location.String()
	}

	switch snap.Phase {
	case session.PhaseIdle:
		v.ShowLogo = true
		v.Image = logoImage

	case session.PhaseRecording:
		index := int(elapsed/ShadowInterval) % len(catalog)
		v.Image = catalog[index].Shadow()
		v.Level = snap.Level.Level

	case session.PhaseProcessing:
		v.ShowSpinner = true

	case session.PhaseHasResult:
		deriveResult(&v, snap.Result, elapsed)

	case session.PhaseErrored:
		v.ShowLogo = true
		v.Image = logoImage
		if snap.ErrorMessage != "" {
			v.ErrorText = "Error: " + snap.ErrorMessage
		}
	}

	return v
}

func deriveResult(v *View, res *session.Result, elapsed time.Duration) {
	if res == nil {
		return
	}

	v.SpeciesID = res.SpeciesID
	v.SpeciesName = res.SpeciesName
	v.DisplayName = res.DisplayName()
	v.CommonName = res.CommonName
	if res.Confidence != nil {
		v.ConfidenceText = FormatConfidence(*res.Confidence)
		v.ConfidenceLabel = "Confianza: " + v.ConfidenceText
	}

	// the result shows the position that was actually sent
	v.LocationText = UnknownLocation
	if res.Location != nil {
		v.LocationText = res.Location.String()
	}

	if species, ok := SpeciesByID(res.SpeciesID); ok {
		v.Image = species.Shadow()
		if elapsed >= RevealDelay {
			v.Image = species.Image()
			v.Revealed = true
		}
	}
}

// FormatConfidence renders a percentage with one decimal, e.g. "87.5%".
func FormatConfidence(percent float64) string {
	return strconv.FormatFloat(percent, 'f', 1, 64) + "%"
}

func statusText(p session.Phase) string {
	switch p {
	case session.PhaseRecording:
		return "Escuchando..."
	case session.PhaseProcessing:
		return "Analizando..."
	case session.PhaseHasResult:
		return "Resultado"
	case session.PhaseErrored:
		return "Error"
	default:
		return "Listo para grabar"
	}
}
