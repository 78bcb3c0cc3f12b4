package upload

import (
	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/cmd/record"
	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/myaudio"
)

// Command creates the upload command.
func Command(settings *conf.Settings) *cobra.Command {
	var location record.LocationFlags

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Identify the call in an audio file",
		Long:  "Send an existing recording for identification. Accepted formats: " + formats() + ".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := analysis.New(cmd.Context(), settings, location.Options(cmd))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			progress := record.NewProgress(cmd.ErrOrStderr())
			snap, err := a.IdentifyFile(cmd.Context(), args[0], progress.Update)
			progress.Done()
			return record.Report(cmd.Context(), cmd.OutOrStdout(), a, &snap, err)
		},
	}

	location.Register(cmd)
	return cmd
}

func formats() string {
	exts := myaudio.SupportedExtensions()
	out := ""
	for i, ext := range exts {
		if i > 0 {
			out += ", "
		}
		out += ext
	}
	return out
}
