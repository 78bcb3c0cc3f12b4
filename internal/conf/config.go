// Package conf loads phibia settings from YAML, environment and flags through viper.
package conf

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/secrets"
)

// Settings contains all configuration options for phibia.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name    string `yaml:"name"`    // station or device name reported with results
		DataDir string `yaml:"datadir"` // session cookies and local history live here
	} `yaml:"main"`

	API          APISettings          `yaml:"api"`
	Audio        AudioSettings        `yaml:"audio"`
	Location     LocationSettings     `yaml:"location"`
	Mapbox       MapboxSettings       `yaml:"mapbox"`
	History      HistorySettings      `yaml:"history"`
	Output       OutputSettings       `yaml:"output"`
	Notification NotificationSettings `yaml:"notification"`
	WebServer    WebServerSettings    `yaml:"webserver"`
	Sentry       SentrySettings       `yaml:"sentry"`
	Logging      logger.LoggingConfig `yaml:"logging"`
}

// APISettings configures the phibIA backend.
type APISettings struct {
	URL            string        `yaml:"url"`            // base path or absolute URL, default "/api"
	Host           string        `yaml:"host"`           // origin a relative URL is resolved against
	LatitudeField  string        `yaml:"latitudefield"`  // multipart field name for latitude
	LongitudeField string        `yaml:"longitudefield"` // multipart field name for longitude
	Timeout        time.Duration `yaml:"timeout"`        // default timeout for catalog and profile calls
	PredictTimeout time.Duration `yaml:"predicttimeout"` // upper bound for one prediction upload
	CatalogTTL     time.Duration `yaml:"catalogttl"`     // species catalog cache lifetime
}

// AudioSettings configures microphone capture.
type AudioSettings struct {
	Source          string        `yaml:"source"`          // capture device name or id, empty for system default
	SampleRate      int           `yaml:"samplerate"`      // capture sample rate in Hz
	Duration        time.Duration `yaml:"duration"`        // default recording length for the record command
	MaxDuration     time.Duration `yaml:"maxduration"`     // capture buffer bound
	MaxUploadSizeMB int           `yaml:"maxuploadsizemb"` // largest file accepted for upload
}

// LocationSettings configures the geolocation adapter.
type LocationSettings struct {
	Provider   string        `yaml:"provider"`   // auto, static, ip or none
	Latitude   float64       `yaml:"latitude"`   // fixed position for the static provider
	Longitude  float64       `yaml:"longitude"`  // fixed position for the static provider
	LookupURL  string        `yaml:"lookupurl"`  // IP geolocation endpoint
	Timeout    time.Duration `yaml:"timeout"`    // one-shot position timeout
	MaximumAge time.Duration `yaml:"maximumage"` // reuse a cached position this long
}

// HasStaticPosition reports whether fixed coordinates were configured.
func (l *LocationSettings) HasStaticPosition() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// MapboxSettings configures reverse and forward geocoding.
type MapboxSettings struct {
	Token     string        `yaml:"token"`
	BaseURL   string        `yaml:"baseurl"`
	Language  string        `yaml:"language"`
	RateLimit float64       `yaml:"ratelimit"` // requests per second
	CacheTTL  time.Duration `yaml:"cachettl"`
}

// HistorySettings configures the local result history.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite file, relative paths resolve under main.datadir
}

// OutputSettings configures result publishing.
type OutputSettings struct {
	MQTT MQTTSettings `yaml:"mqtt"`
}

// MQTTSettings configures the MQTT result sink.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Retain   bool   `yaml:"retain"`
}

// NotificationSettings configures user notifications.
type NotificationSettings struct {
	Push PushSettings `yaml:"push"`
}

// PushSettings configures shoutrrr push notifications.
type PushSettings struct {
	Enabled       bool          `yaml:"enabled"`
	URLs          []string      `yaml:"urls"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"minconfidence"` // percent, results below are not pushed
	Template      string        `yaml:"template"`      // text/template for the message body
}

// WebServerSettings configures the local daemon started by "phibia serve".
type WebServerSettings struct {
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port"`
}

// Address returns the listen address for the web server.
func (w *WebServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", w.Listen, w.Port)
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from the default search paths.
func Load() (*Settings, error) {
	return LoadWithFile("")
}

// LoadWithFile reads configuration from configFile, or from the default search
// paths when configFile is empty. A default config file is created on first run.
func LoadWithFile(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	settings.normalize()

	if err := settings.resolveSecrets(); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

// initViper sets defaults, environment bindings and reads the config file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "bind-env").
			Build()
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("error reading config file %s: %w", configFile, err)).
				Component("configuration").
				Category(errors.CategoryFileIO).
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return nil
}

// createDefaultConfig writes the current defaults to dir/config.yaml and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(fmt.Errorf("error creating directories for config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := writeFileAtomic(configPath, data, 0o600); err != nil {
		return err
	}

	logger.Global().Module("conf").Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// normalize fills derived values that depend on other settings
func (s *Settings) normalize() {
	s.API.URL = strings.TrimRight(strings.TrimSpace(s.API.URL), "/")
	if s.API.URL == "" {
		s.API.URL = "/api"
	}
	s.API.Host = strings.TrimRight(strings.TrimSpace(s.API.Host), "/")
	s.Main.DataDir = expandHome(s.Main.DataDir)
	if s.History.Path != "" && !filepath.IsAbs(s.History.Path) {
		s.History.Path = filepath.Join(s.Main.DataDir, s.History.Path)
	}
}

// resolveSecrets expands ${VAR} and file: references in credential fields.
func (s *Settings) resolveSecrets() error {
	fields := []*string{
		&s.Mapbox.Token,
		&s.Output.MQTT.Password,
		&s.Sentry.DSN,
	}
	for i := range s.Notification.Push.URLs {
		fields = append(fields, &s.Notification.Push.URLs[i])
	}
	for _, field := range fields {
		resolved, err := secrets.Resolve(*field)
		if err != nil {
			return err
		}
		*field = resolved
	}
	return nil
}

// APIBaseURL resolves api.url against api.host. An absolute api.url wins.
func (s *Settings) APIBaseURL() (*url.URL, error) {
	raw := s.API.URL
	if !strings.Contains(raw, "://") {
		raw = s.API.Host + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid api url %q: %w", raw, err)).
			Component("configuration").
			Category(errors.CategoryValidation).
			Build()
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

// SessionFile is where the backend session cookie is persisted.
func (s *Settings) SessionFile() string {
	return filepath.Join(s.Main.DataDir, "session.json")
}

// GetSettings returns the most recently loaded settings.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically.
// Comments and ordering in an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return writeFileAtomic(configPath, data, 0o600)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Chmod(perm); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error setting file permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return errors.New(fmt.Errorf("error replacing config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}
	return nil
}
