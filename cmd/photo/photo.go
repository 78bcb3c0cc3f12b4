package photo

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
)

// maxPhotoSize bounds the JPEG read from disk.
const maxPhotoSize = 20 << 20

// Command creates the photo command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "photo <file.jpg>",
		Short: "Upload a photo to your account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readJPEG(args[0])
			if err != nil {
				return err
			}

			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			name, err := client.SavePhoto(cmd.Context(), data, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Foto guardada como %s\n", name)
			return nil
		},
	}
}

func readJPEG(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxPhotoSize {
		return nil, fmt.Errorf("photo %s is larger than %d MB", path, maxPhotoSize>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if ct := http.DetectContentType(data); ct != "image/jpeg" {
		return nil, fmt.Errorf("photo %s is %s, expected image/jpeg", path, ct)
	}
	return data, nil
}
