package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phibia-app/phibia-go/cmd/account"
	"github.com/phibia-app/phibia-go/cmd/captures"
	"github.com/phibia-app/phibia-go/cmd/devices"
	"github.com/phibia-app/phibia-go/cmd/history"
	"github.com/phibia-app/phibia-go/cmd/locations"
	"github.com/phibia-app/phibia-go/cmd/notify"
	"github.com/phibia-app/phibia-go/cmd/photo"
	"github.com/phibia-app/phibia-go/cmd/profile"
	"github.com/phibia-app/phibia-go/cmd/record"
	"github.com/phibia-app/phibia-go/cmd/serve"
	"github.com/phibia-app/phibia-go/cmd/species"
	"github.com/phibia-app/phibia-go/cmd/upload"
	"github.com/phibia-app/phibia-go/cmd/version"
	"github.com/phibia-app/phibia-go/internal/buildinfo"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "phibia",
		Short:         "phibIA amphibian call identification",
		Long:          "Record or upload frog and toad calls and identify the species with the phibIA service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		rootCmd.RunE = func(*cobra.Command, []string) error { return err }
		return rootCmd
	}

	versionCmd := version.Command()

	rootCmd.AddCommand(
		record.Command(settings),
		upload.Command(settings),
		captures.Command(settings),
		species.Command(settings),
		profile.Command(settings),
		locations.Command(settings),
		photo.Command(settings),
		devices.Command(settings),
		history.Command(settings),
		serve.Command(settings),
		notify.Command(settings),
		versionCmd,
	)
	rootCmd.AddCommand(account.Commands(settings)...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings)
	}

	return rootCmd
}

// initialize sets up logging and telemetry once flags are parsed.
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		if settings.Logging.Console == nil {
			settings.Logging.Console = &logger.ConsoleOutput{Enabled: true}
		}
		settings.Logging.Console.Level = "debug"
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, buildinfo.Current().Version(), "production"); err != nil {
			logger.Global().Module("main").Warn("telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.API.URL, "api-url", settings.API.URL, "Backend API URL, absolute or relative to api.host")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
