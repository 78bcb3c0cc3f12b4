package species

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
)

// Command creates the species command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "species",
		Short: "Browse the species catalog",
	}

	cmd.AddCommand(listCommand(settings), showCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the species the service can identify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			catalog, err := client.Species(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NOMBRE CIENTÍFICO\tNOMBRE COMÚN")
			for i := range catalog {
				fmt.Fprintf(w, "%s\t%s\n", catalog[i].ScientificName, catalog[i].CommonName)
			}
			return w.Flush()
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show <scientific name>",
		Short: "Show the catalog entry for a species",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.FindSpecies(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, info.ScientificName)
			if info.CommonName != "" {
				fmt.Fprintln(out, info.CommonName)
			}
			if desc := info.PlainDescription(); desc != "" {
				fmt.Fprintf(out, "\n%s\n", desc)
			}
			if info.Image != "" {
				fmt.Fprintf(out, "\nImagen: %s\n", client.ImageURL(info.Image))
			}
			return nil
		},
	}
}
