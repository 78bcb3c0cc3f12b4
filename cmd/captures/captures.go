package captures

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/phibia"
)

// Command creates the captures command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Manage your saved recordings",
	}

	cmd.AddCommand(listCommand(settings), deleteCommand(settings), downloadCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your saved recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			detections, err := client.Captures(cmd.Context())
			if err != nil {
				return err
			}
			if len(detections) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hay capturas guardadas.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tESPECIE\tNOMBRE COMÚN\tFECHA\tHORA\tUBICACIÓN")
			for i := range detections {
				d := &detections[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					d.AudioID, d.Species.ScientificName, d.Species.CommonName,
					d.LocalDate(), d.LocalTime(), d.Location.Description)
			}
			return w.Flush()
		},
	}
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <audio-id>",
		Short: "Delete a saved recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.DeleteAudio(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Audio %d eliminado.\n", id)
			return nil
		},
	}
}

func downloadCommand(settings *conf.Settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <audio-id>",
		Short: "Download a saved recording",
		Long:  "Download a saved recording. Without -o the file is written to the current directory as audio_<id> with an extension matching its type.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			dir := "."
			if output != "" {
				dir = filepath.Dir(output)
			}
			tmp, err := os.CreateTemp(dir, ".phibia-download-*")
			if err != nil {
				return fmt.Errorf("failed to create download file: %w", err)
			}
			defer func() { _ = os.Remove(tmp.Name()) }()

			n, contentType, err := client.DownloadAudio(cmd.Context(), id, tmp)
			if closeErr := tmp.Close(); err == nil && closeErr != nil {
				err = fmt.Errorf("failed to write download: %w", closeErr)
			}
			if err != nil {
				return err
			}

			target := output
			if target == "" {
				target = "audio_" + strconv.Itoa(id) + phibia.AudioExtension(contentType)
			}
			if err := os.Rename(tmp.Name(), target); err != nil {
				return fmt.Errorf("failed to save download: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", target, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write")
	return cmd
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid audio id %q", arg)
	}
	return id, nil
}
