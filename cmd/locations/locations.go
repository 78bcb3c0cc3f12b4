package locations

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/mapbox"
	"github.com/phibia-app/phibia-go/internal/phibia"
)

const addressTimeout = 3 * time.Second

// Command creates the locations command.
func Command(settings *conf.Settings) *cobra.Command {
	var resolve bool

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List where species have been recorded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			httpClient := analysis.NewHTTPClient(settings)
			client, err := phibia.NewFromSettings(settings, httpClient)
			if err != nil {
				httpClient.Close()
				return err
			}
			defer client.Close()

			var geocoder *mapbox.Client
			if resolve {
				if geocoder, err = mapbox.NewFromSettings(settings, httpClient); err != nil {
					return err
				}
			}

			places, err := client.Locations(cmd.Context())
			if err != nil {
				return err
			}
			if len(places) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hay ubicaciones registradas.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "ESPECIE\tLATITUD\tLONGITUD\tFECHA"
			if geocoder != nil {
				header += "\tDIRECCIÓN"
			}
			fmt.Fprintln(w, header)
			for i := range places {
				p := &places[i]
				date := p.RecordedAt
				if t, ok := p.Time(); ok {
					date = t.Local().Format("02/01/2006 15:04")
				}
				fmt.Fprintf(w, "%s\t%.5f\t%.5f\t%s", p.Name, p.Latitude, p.Longitude, date)
				if geocoder != nil {
					ctx, cancel := context.WithTimeout(cmd.Context(), addressTimeout)
					fmt.Fprintf(w, "\t%s", geocoder.Address(ctx, p.Latitude, p.Longitude))
					cancel()
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolve, "address", false, "Resolve each position to an address with Mapbox")
	return cmd
}
