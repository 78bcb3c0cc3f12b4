package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default map center used by the locations view (Río Cuarto, Córdoba).
const (
	DefaultMapLatitude  = -33.123
	DefaultMapLongitude = -64.3493
)

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "phibia")
	viper.SetDefault("main.datadir", defaultDataDir())

	viper.SetDefault("api.url", "/api")
	viper.SetDefault("api.host", "http://localhost:5000")
	viper.SetDefault("api.latitudefield", "latitude")
	viper.SetDefault("api.longitudefield", "longitude")
	viper.SetDefault("api.timeout", 30*time.Second)
	viper.SetDefault("api.predicttimeout", 2*time.Minute)
	viper.SetDefault("api.catalogttl", 6*time.Hour)

	viper.SetDefault("audio.source", "")
	viper.SetDefault("audio.samplerate", 48000)
	viper.SetDefault("audio.duration", 10*time.Second)
	viper.SetDefault("audio.maxduration", 60*time.Second)
	viper.SetDefault("audio.maxuploadsizemb", 25)

	viper.SetDefault("location.provider", "auto")
	viper.SetDefault("location.latitude", 0.0)
	viper.SetDefault("location.longitude", 0.0)
	viper.SetDefault("location.lookupurl", "http://ip-api.com/json/?fields=status,message,lat,lon")
	viper.SetDefault("location.timeout", 10*time.Second)
	viper.SetDefault("location.maximumage", 60*time.Second)

	viper.SetDefault("mapbox.token", "")
	viper.SetDefault("mapbox.baseurl", "https://api.mapbox.com")
	viper.SetDefault("mapbox.language", "es")
	viper.SetDefault("mapbox.ratelimit", 5.0)
	viper.SetDefault("mapbox.cachettl", 24*time.Hour)

	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "history.db")

	viper.SetDefault("output.mqtt.enabled", false)
	viper.SetDefault("output.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("output.mqtt.topic", "phibia/detections")
	viper.SetDefault("output.mqtt.username", "")
	viper.SetDefault("output.mqtt.password", "")
	viper.SetDefault("output.mqtt.retain", false)

	viper.SetDefault("notification.push.enabled", false)
	viper.SetDefault("notification.push.urls", []string{})
	viper.SetDefault("notification.push.timeout", 10*time.Second)
	viper.SetDefault("notification.push.minconfidence", 0.0)
	viper.SetDefault("notification.push.template", "")

	viper.SetDefault("webserver.listen", "127.0.0.1")
	viper.SetDefault("webserver.port", 8087)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "warn")
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", "logs/phibia.log")
	viper.SetDefault("logging.fileoutput.level", "info")
}
