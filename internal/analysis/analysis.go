// Package analysis assembles the components one phibia process needs: the
// backend client, the identification session and the optional result sinks.
package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/phibia-app/phibia-go/internal/buildinfo"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/datastore"
	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/mapbox"
	"github.com/phibia-app/phibia-go/internal/mqtt"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/notification"
	"github.com/phibia-app/phibia-go/internal/observability"
	"github.com/phibia-app/phibia-go/internal/phibia"
	"github.com/phibia-app/phibia-go/internal/session"
	"github.com/phibia-app/phibia-go/internal/suncalc"
)

const telemetryFlushTimeout = 2 * time.Second

// Options selects how an Analyzer is assembled.
type Options struct {
	// NoLocation never requests a position
	NoLocation bool

	// Position replaces the configured location provider
	Position *geolocation.Location

	// Place is searched through Mapbox and wins over Position
	Place string

	// Capturer replaces the local microphone
	Capturer myaudio.Capturer

	// Sinks enables local history, MQTT publishing and push notifications
	Sinks bool
}

// Analyzer owns every component of a running identification session.
type Analyzer struct {
	settings *conf.Settings

	HTTP    *httpclient.Client
	API     *phibia.Client
	Metrics *observability.Metrics
	Mapbox  *mapbox.Client
	Session *session.Session
	History *datastore.SQLiteStore // nil when history is disabled

	recorder   *datastore.Recorder
	mqttClient mqtt.Client
	publisher  *mqtt.Publisher
	dispatcher *notification.Dispatcher
	stopWatch  func()

	closeOnce sync.Once
	log       logger.Logger
}

func getLogger() logger.Logger {
	return logger.Global().Module("analysis")
}

// NewHTTPClient returns the shared outgoing client with the configured timeout.
func NewHTTPClient(settings *conf.Settings) *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.UserAgent = buildinfo.Current().UserAgent()
	if settings.API.Timeout > 0 {
		cfg.DefaultTimeout = settings.API.Timeout
	}
	return httpclient.New(&cfg)
}

// NewAPIClient returns a backend client for commands that do not run a session.
func NewAPIClient(settings *conf.Settings) (*phibia.Client, error) {
	return phibia.NewFromSettings(settings, NewHTTPClient(settings))
}

// New builds an Analyzer. Sinks that fail to start are logged and skipped;
// only the backend client and the session are required.
func New(ctx context.Context, settings *conf.Settings, opts Options) (*Analyzer, error) {
	a := &Analyzer{
		settings:  settings,
		stopWatch: func() {},
		log:       getLogger(),
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = metrics

	a.HTTP = NewHTTPClient(settings)
	observability.InstrumentClient(a.HTTP, metrics.HTTP)

	a.API, err = phibia.NewFromSettings(settings, a.HTTP)
	if err != nil {
		a.HTTP.Close()
		return nil, err
	}

	a.Mapbox, err = mapbox.NewFromSettings(settings, a.HTTP)
	if err != nil {
		a.HTTP.Close()
		return nil, err
	}

	locator, err := a.newLocator(ctx, opts)
	if err != nil {
		a.HTTP.Close()
		return nil, err
	}

	capturer := opts.Capturer
	if capturer == nil {
		capturer = myaudio.NewMalgoCapturer(settings)
	}

	a.Session = session.New(session.Options{
		Capturer:        capturer,
		Predictor:       observability.InstrumentPredictor(a.API, metrics.Session),
		Locator:         observability.InstrumentLocator(locator, metrics.Session),
		LocationTimeout: settings.Location.Timeout,
	})
	a.stopWatch = observability.WatchSession(a.Session, metrics.Session)

	if opts.Sinks {
		a.attachSinks()
	}

	return a, nil
}

// Geocoder returns the Mapbox client when a token is configured, or nil.
func (a *Analyzer) Geocoder() *mapbox.Client {
	if a.Mapbox == nil || !a.Mapbox.Enabled() {
		return nil
	}
	return a.Mapbox
}

func (a *Analyzer) attachSinks() {
	store, err := datastore.NewFromSettings(a.settings)
	switch {
	case err != nil:
		a.log.Warn("local history unavailable", logger.Error(err))
	case store != nil:
		a.History = store
		var resolver datastore.AddressResolver
		if geocoder := a.Geocoder(); geocoder != nil {
			resolver = geocoder
		}
		a.recorder = datastore.NewRecorder(store, suncalc.NewSunCalc(time.Local), resolver)
		a.Session.OnResult(a.recorder.Hook())
	}

	if a.settings.Output.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(a.settings)
		client, err := mqtt.NewClient(cfg, a.Metrics.MQTT)
		if err != nil {
			a.log.Warn("mqtt output disabled", logger.Error(err))
		} else {
			// the publisher connects on the first result
			a.mqttClient = client
			a.publisher = mqtt.NewPublisher(client, cfg, a.settings.Main.Name, time.Local)
			a.Session.OnResult(a.publisher.Hook())
		}
	}

	dispatcher, err := notification.NewFromSettings(a.settings, a.Metrics.Notification)
	switch {
	case err != nil:
		a.log.Warn("push notifications disabled", logger.Error(err))
	case dispatcher != nil:
		a.dispatcher = dispatcher
		a.Session.OnResult(dispatcher.Hook())
	}
}

// Close stops the session first so no hook fires into a closed sink, then
// drains and closes the sinks.
func (a *Analyzer) Close() error {
	var firstErr error
	a.closeOnce.Do(func() {
		if err := a.Session.Close(); err != nil {
			firstErr = err
		}
		a.stopWatch()

		if a.publisher != nil {
			a.publisher.Close()
		}
		if a.mqttClient != nil {
			a.mqttClient.Disconnect()
		}
		if a.dispatcher != nil {
			a.dispatcher.Close()
		}
		if a.recorder != nil {
			a.recorder.Close()
		}
		if a.History != nil {
			if err := a.History.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		a.HTTP.Close()
		errors.FlushTelemetry(telemetryFlushTimeout)
	})
	return firstErr
}
