package conf

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ValidationError collects every settings problem found in one pass.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// HexColorPattern matches the #rrggbb colors accepted for profile backgrounds.
var HexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateSettings validates the entire Settings struct.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	add := func(errs []string) { ve.Errors = append(ve.Errors, errs...) }

	add(validateAPISettings(&settings.API))
	add(validateAudioSettings(&settings.Audio))
	add(validateLocationSettings(&settings.Location))
	add(validateMapboxSettings(&settings.Mapbox))
	add(validateOutputSettings(settings))
	add(validateWebServerSettings(&settings.WebServer))

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAPISettings(api *APISettings) []string {
	var errs []string
	if !strings.Contains(api.URL, "://") {
		if err := validateEnvAbsoluteURL(api.Host); err != nil {
			errs = append(errs, fmt.Sprintf("api.host %q: %v", api.Host, err))
		}
	} else if err := validateEnvAbsoluteURL(api.URL); err != nil {
		errs = append(errs, fmt.Sprintf("api.url %q: %v", api.URL, err))
	}
	if api.LatitudeField == "" || api.LongitudeField == "" {
		errs = append(errs, "api.latitudefield and api.longitudefield must not be empty")
	}
	if api.LatitudeField == api.LongitudeField {
		errs = append(errs, "api.latitudefield and api.longitudefield must differ")
	}
	if api.PredictTimeout < time.Second {
		errs = append(errs, "api.predicttimeout must be at least 1s")
	}
	return errs
}

func validateAudioSettings(audio *AudioSettings) []string {
	var errs []string
	switch audio.SampleRate {
	case 16000, 22050, 32000, 44100, 48000:
	default:
		errs = append(errs, fmt.Sprintf("audio.samplerate %d is not supported", audio.SampleRate))
	}
	if audio.MaxDuration <= 0 {
		errs = append(errs, "audio.maxduration must be positive")
	}
	if audio.Duration <= 0 || audio.Duration > audio.MaxDuration {
		errs = append(errs, "audio.duration must be positive and not exceed audio.maxduration")
	}
	if audio.MaxUploadSizeMB <= 0 {
		errs = append(errs, "audio.maxuploadsizemb must be positive")
	}
	return errs
}

func validateLocationSettings(loc *LocationSettings) []string {
	var errs []string
	if err := validateEnvProvider(loc.Provider); err != nil {
		errs = append(errs, fmt.Sprintf("location.provider: %v", err))
	}
	if loc.Latitude < -90 || loc.Latitude > 90 {
		errs = append(errs, "location.latitude must be between -90 and 90")
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		errs = append(errs, "location.longitude must be between -180 and 180")
	}
	if strings.EqualFold(loc.Provider, "static") && !loc.HasStaticPosition() {
		errs = append(errs, "location.provider static requires location.latitude and location.longitude")
	}
	if loc.Timeout <= 0 {
		errs = append(errs, "location.timeout must be positive")
	}
	return errs
}

func validateMapboxSettings(mb *MapboxSettings) []string {
	var errs []string
	if mb.RateLimit <= 0 {
		errs = append(errs, "mapbox.ratelimit must be positive")
	}
	if err := validateEnvAbsoluteURL(mb.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("mapbox.baseurl: %v", err))
	}
	return errs
}

func validateOutputSettings(s *Settings) []string {
	var errs []string
	if s.Output.MQTT.Enabled {
		if s.Output.MQTT.Broker == "" {
			errs = append(errs, "output.mqtt.broker is required when mqtt is enabled")
		}
		if s.Output.MQTT.Topic == "" {
			errs = append(errs, "output.mqtt.topic is required when mqtt is enabled")
		}
	}
	if s.Notification.Push.Enabled && len(s.Notification.Push.URLs) == 0 {
		errs = append(errs, "notification.push.urls is required when push is enabled")
	}
	return errs
}

func validateWebServerSettings(ws *WebServerSettings) []string {
	if ws.Port < 1 || ws.Port > 65535 {
		return []string{fmt.Sprintf("webserver.port %d out of range", ws.Port)}
	}
	return nil
}
