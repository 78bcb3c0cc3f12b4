package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/presentation"
	"github.com/phibia-app/phibia-go/internal/session"
	"github.com/phibia-app/phibia-go/internal/spinner"
)

// LocationFlags are the position options shared by record and upload.
type LocationFlags struct {
	NoLocation bool
	Latitude   float64
	Longitude  float64
	Place      string
}

// Register adds the location flags to cmd.
func (f *LocationFlags) Register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.NoLocation, "no-location", false, "Do not send the recording position")
	cmd.Flags().Float64Var(&f.Latitude, "lat", 0, "Latitude to send instead of the detected position")
	cmd.Flags().Float64Var(&f.Longitude, "lng", 0, "Longitude to send instead of the detected position")
	cmd.Flags().StringVar(&f.Place, "place", "", "Place name to look up and send as the position")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
	cmd.MarkFlagsMutuallyExclusive("no-location", "lat")
	cmd.MarkFlagsMutuallyExclusive("no-location", "place")
	cmd.MarkFlagsMutuallyExclusive("lat", "place")
}

// Options converts the flags into analyzer options.
func (f *LocationFlags) Options(cmd *cobra.Command) analysis.Options {
	opts := analysis.Options{
		NoLocation: f.NoLocation,
		Place:      strings.TrimSpace(f.Place),
		Sinks:      true,
	}
	if cmd.Flags().Changed("lat") {
		opts.Position = &geolocation.Location{Latitude: f.Latitude, Longitude: f.Longitude}
	}
	return opts
}

// Command creates the record command.
func Command(settings *conf.Settings) *cobra.Command {
	var location LocationFlags

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a call from the microphone and identify it",
		Long: `Record from the configured input device for --duration, then send the clip
for identification. Press Ctrl-C to cancel; nothing is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings.Audio.Duration <= 0 {
				return fmt.Errorf("duration must be positive")
			}

			a, err := analysis.New(cmd.Context(), settings, location.Options(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			progress := NewProgress(cmd.ErrOrStderr())
			snap, err := a.Record(cmd.Context(), settings.Audio.Duration, progress.Update)
			progress.Done()

			return Report(cmd.Context(), cmd.OutOrStdout(), a, &snap, err)
		},
	}

	cmd.Flags().DurationVar(&settings.Audio.Duration, "duration", settings.Audio.Duration, "How long to record")
	cmd.Flags().StringVar(&settings.Audio.Source, "source", settings.Audio.Source, "Capture device name or id")
	location.Register(cmd)

	return cmd
}

// Report prints the outcome of a session. A cancelled run prints nothing
// and is not an error.
func Report(ctx context.Context, w io.Writer, a *analysis.Analyzer, snap *session.Snapshot, err error) error {
	if errors.Is(err, context.Canceled) || (err == nil && snap.Phase == session.PhaseIdle) {
		return nil
	}
	if err != nil {
		return err
	}
	// the command context may be done by now; the address lookup is best effort
	return presentation.Render(w, a.View(context.WithoutCancel(ctx), snap))
}

// Progress redraws a one line status on terminals: the input level while
// recording and a spinner while the backend works.
type Progress struct {
	w       io.Writer
	enabled bool
	spin    *spinner.Spinner
}

// NewProgress returns a Progress that draws only when w is a terminal.
func NewProgress(w io.Writer) *Progress {
	f, ok := w.(*os.File)
	return &Progress{w: w, enabled: ok && term.IsTerminal(int(f.Fd())), spin: spinner.New(w)}
}

// Update is an analysis.ProgressFunc.
func (p *Progress) Update(snap session.Snapshot, remaining time.Duration) {
	if !p.enabled {
		return
	}
	view := presentation.Derive(&snap, 0)
	switch snap.Phase {
	case session.PhaseRecording:
		const width = 20
		filled := min(max(snap.Level.Level*width/100, 0), width)
		fmt.Fprintf(p.w, "\r\033[K%s %3s [%s%s]", view.Status, remaining,
			strings.Repeat("#", filled), strings.Repeat(" ", width-filled))
	case session.PhaseProcessing:
		p.spin.Update(view.Status)
	}
}

// Done clears the status line.
func (p *Progress) Done() {
	if p.enabled {
		p.spin.Cleanup()
	}
}
