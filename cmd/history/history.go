package history

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/datastore"
	"github.com/phibia-app/phibia-go/internal/presentation"
)

// Command creates the history command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		species string
		since   string
		limit   int
		stats   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show identifications saved on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := datastore.NewFromSettings(settings)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("local history is disabled, set history.enabled in the config file")
			}
			defer func() { _ = store.Close() }()

			if stats {
				counts, err := store.CountBySpecies(cmd.Context())
				if err != nil {
					return err
				}
				return printStats(cmd.OutOrStdout(), counts)
			}

			opts := datastore.ListOptions{Species: species, Limit: limit}
			if since != "" {
				if opts.Since, err = parseSince(since); err != nil {
					return err
				}
			}
			rows, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printRows(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringVar(&species, "species", "", "Only show this scientific name")
	cmd.Flags().StringVar(&since, "since", "", "Only show entries after a date (2006-01-02) or within a duration (24h)")
	cmd.Flags().IntVar(&limit, "limit", datastore.DefaultListLimit, "Maximum number of entries")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show counts per species instead of entries")
	return cmd
}

// parseSince accepts a date, an RFC 3339 time, or a duration back from now.
func parseSince(v string) (time.Time, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return time.Now().Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q, use 2006-01-02, RFC 3339 or a duration like 24h", v)
}

func printRows(out io.Writer, rows []datastore.Detection) error {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No hay identificaciones guardadas.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FECHA\tESPECIE\tCONFIANZA\tORIGEN\tUBICACIÓN")
	for i := range rows {
		d := &rows[i]
		confidence := "-"
		if d.Confidence != nil {
			confidence = presentation.FormatConfidence(*d.Confidence)
		}
		place := d.Address
		if place == "" && d.HasLocation() {
			place = strconv.FormatFloat(*d.Latitude, 'f', 4, 64) + ", " + strconv.FormatFloat(*d.Longitude, 'f', 4, 64)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.RecordedAt.Local().Format("02/01/2006 15:04"), d.ScientificName, confidence, d.Source, place)
	}
	return w.Flush()
}

func printStats(out io.Writer, counts []datastore.SpeciesCount) error {
	if len(counts) == 0 {
		fmt.Fprintln(out, "No hay identificaciones guardadas.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ESPECIE\tCANTIDAD\tÚLTIMA")
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%d\t%s\n", c.ScientificName, c.Count, c.LastSeen.Local().Format("02/01/2006 15:04"))
	}
	return w.Flush()
}
