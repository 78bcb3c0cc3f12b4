package presentation

import (
	"fmt"
	"io"
	"strings"

	"github.com/phibia-app/phibia-go/internal/session"
)

const meterWidth = 20

// Render writes v as a few lines of plain text.
func Render(w io.Writer, v View) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Estado: %s\n", v.Status)

	if v.Phase == session.PhaseRecording {
		filled := v.Level * meterWidth / 100
		fmt.Fprintf(&b, "Nivel: [%s%s] %d\n", strings.Repeat("#", filled), strings.Repeat(" ", meterWidth-filled), v.Level)
	}

	if v.SpeciesName != "" {
		if v.CommonName != "" {
			fmt.Fprintf(&b, "Especie: %s (%s)\n", v.SpeciesName, v.CommonName)
		} else {
			fmt.Fprintf(&b, "Especie: %s\n", v.SpeciesName)
		}
	}
	if v.ConfidenceLabel != "" {
		b.WriteString(v.ConfidenceLabel + "\n")
	}

	if v.SpeciesName != "" || v.ErrorText != "" {
		location := v.LocationText
		if v.Address != "" && v.Address != location {
			location += " (" + v.Address + ")"
		}
		fmt.Fprintf(&b, "Ubicación: %s\n", location)
	}

	if v.ErrorText != "" {
		b.WriteString(v.ErrorText + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
