package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/myaudio"
)

// Command creates the devices command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Long:  "List capture devices. Use the name or id as audio.source in the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := myaudio.ListDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No capture devices found.")
				return nil
			}
			for _, d := range devices {
				marker := " "
				if d.IsDefault {
					marker = "*"
				}
				selected := ""
				if settings.Audio.Source != "" && (d.ID == settings.Audio.Source || d.Name == settings.Audio.Source) {
					selected = "  (configured)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s, ID: %s%s\n", marker, d.Index, d.Name, d.ID, selected)
			}
			return nil
		},
	}
}
