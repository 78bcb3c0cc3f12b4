package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/notification"
	"github.com/phibia-app/phibia-go/internal/phibia"
	"github.com/phibia-app/phibia-go/internal/session"
)

// Command returns a cobra command that pushes a test detection through the
// configured notification URLs.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		species    string
		confidence string
		message    string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test push notification",
		Long: `Send a test notification through the configured push URLs.

Examples:
  # Detection rendered with the configured template
  phibia notify --species="1-Odontophrynus_asper" --confidence=92.5

  # Plain text message
  phibia notify --message="Hola desde phibia"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dispatcher, err := notification.NewFromSettings(settings, nil)
			if err != nil {
				return err
			}
			if dispatcher == nil {
				return fmt.Errorf("push notifications are disabled, set notification.push.enabled in the config file")
			}
			if dispatcher.ProviderCount() == 0 {
				dispatcher.Close()
				return fmt.Errorf("no valid push URL configured")
			}

			if message != "" {
				n := notification.NewNotification(notification.TypeDetection, notification.DefaultTitle, message)
				dispatcher.Enqueue(n)
				dispatcher.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "Notification sent: id=%s type=%s\n", n.ID, n.Type)
				return nil
			}

			res, err := testResult(species, confidence)
			if err != nil {
				dispatcher.Close()
				return err
			}
			err = dispatcher.NotifyResult(&res)
			// Close drains the queue so delivery finishes before exit
			dispatcher.Close()
			if err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Notification sent: species=%s", res.DisplayName())
			if res.Confidence != nil {
				fmt.Fprintf(cmd.OutOrStdout(), " confidence=%.1f", *res.Confidence)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&species, "species", "1-Odontophrynus_asper", "Model label or scientific name")
	cmd.Flags().StringVar(&confidence, "confidence", "", "Confidence percent, empty for none")
	cmd.Flags().StringVar(&message, "message", "", "Send this text instead of a detection")
	return cmd
}

func testResult(species, confidence string) (session.Result, error) {
	label := phibia.ParseSpeciesLabel(strings.TrimSpace(species))
	now := time.Now()
	res := session.Result{
		ID:          uuid.NewString(),
		Label:       species,
		SpeciesID:   label.ID,
		SpeciesName: label.Name,
		Source:      session.SourceUpload,
		Filename:    "test.wav",
		StartedAt:   now,
		CompletedAt: now,
	}
	if confidence != "" {
		v, err := strconv.ParseFloat(confidence, 64)
		if err != nil || v < 0 || v > 100 {
			return session.Result{}, fmt.Errorf("invalid confidence %q, expected 0-100", confidence)
		}
		res.Confidence = &v
	}
	return res, nil
}
