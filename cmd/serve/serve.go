package serve

import (
	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/api"
	"github.com/phibia-app/phibia-go/internal/buildinfo"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var noLocation bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local identification service",
		Long: `Serve the recording session over HTTP so a browser or another device can
record, upload and follow results. Stops on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := analysis.New(cmd.Context(), settings, analysis.Options{NoLocation: noLocation, Sinks: true})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Global().Module("serve").Warn("shutdown incomplete", logger.Error(err))
				}
			}()

			opts := []api.ServerOption{
				api.WithMetrics(a.Metrics),
				api.WithVersion(buildinfo.Current().Version()),
			}
			if a.History != nil {
				opts = append(opts, api.WithHistory(a.History))
			}
			if geocoder := a.Geocoder(); geocoder != nil {
				opts = append(opts, api.WithGeocoder(geocoder))
			}

			server, err := api.New(settings, a.Session, opts...)
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", settings.WebServer.Listen, "Address to listen on")
	cmd.Flags().IntVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "Port to listen on")
	cmd.Flags().BoolVar(&noLocation, "no-location", false, "Do not send positions with predictions")
	return cmd
}
