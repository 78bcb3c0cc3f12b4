// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps a config key to one or more environment variables.
// The first variable that is set wins.
type envBinding struct {
	ConfigKey string
	EnvVars   []string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		// VITE_API_URL is honored so a .env shared with the web frontend works unchanged
		{"api.url", []string{"PHIBIA_API_URL", "VITE_API_URL"}, validateEnvAPIURL},
		{"api.host", []string{"PHIBIA_API_HOST"}, validateEnvAbsoluteURL},
		{"location.latitude", []string{"PHIBIA_LATITUDE"}, validateEnvLatitude},
		{"location.longitude", []string{"PHIBIA_LONGITUDE"}, validateEnvLongitude},
		{"location.provider", []string{"PHIBIA_LOCATION_PROVIDER"}, validateEnvProvider},
		{"mapbox.token", []string{"PHIBIA_MAPBOX_TOKEN", "MAPBOX_TOKEN", "VITE_MAPBOX_TOKEN"}, nil},
		{"sentry.dsn", []string{"PHIBIA_SENTRY_DSN"}, nil},
		{"debug", []string{"PHIBIA_DEBUG"}, validateEnvBool},
	}
}

// bindEnvVars binds environment variables and validates values that are set
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := viper.BindEnv(args...); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.ConfigKey, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			if value := os.Getenv(name); value != "" {
				if err := binding.Validate(value); err != nil {
					warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", name, value, err))
				}
				break
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvAPIURL(value string) error {
	if strings.HasPrefix(value, "/") {
		return nil
	}
	return validateEnvAbsoluteURL(value)
}

func validateEnvAbsoluteURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func validateEnvLatitude(value string) error {
	return validateEnvRange(value, -90, 90)
}

func validateEnvLongitude(value string) error {
	return validateEnvRange(value, -180, 180)
}

func validateEnvRange(value string, low, high float64) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f < low || f > high {
		return fmt.Errorf("must be between %g and %g", low, high)
	}
	return nil
}

func validateEnvProvider(value string) error {
	switch strings.ToLower(value) {
	case "auto", "static", "ip", "none":
		return nil
	}
	return fmt.Errorf("must be one of auto, static, ip, none")
}
