package geolocation

import (
	"strings"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/httpclient"
)

// NewProvider selects a provider from location.provider. disabled forces
// DisabledProvider, as the --no-location flag does.
//
//	auto    static coordinates when configured, otherwise IP lookup
//	static  configured coordinates only
//	ip      IP lookup only
//	none    always denied
func NewProvider(settings *conf.Settings, client *httpclient.Client, disabled bool) Provider {
	if disabled {
		return DisabledProvider{}
	}

	loc := &settings.Location
	static := NewStaticProvider(loc.Latitude, loc.Longitude, loc.HasStaticPosition())

	switch strings.ToLower(loc.Provider) {
	case "none", "disabled", "off":
		return DisabledProvider{}
	case "static":
		return static
	case "ip":
		return NewIPProvider(client, loc.LookupURL)
	default:
		if loc.HasStaticPosition() {
			return static
		}
		return NewFallbackProvider(NewIPProvider(client, loc.LookupURL))
	}
}

// NewFromSettings builds the Adapter used by sessions.
func NewFromSettings(settings *conf.Settings, client *httpclient.Client, disabled bool) *Adapter {
	return NewAdapter(NewProvider(settings, client, disabled), settings.Location.MaximumAge)
}
