package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/session"
	"github.com/phibia-app/phibia-go/internal/suncalc"
)

const (
	saveTimeout   = 5 * time.Second
	saveQueueSize = 16
)

// AddressResolver names a position; mapbox.Client implements it.
type AddressResolver interface {
	Address(ctx context.Context, lat, lng float64) string
}

// Recorder saves session results to the history store from its own
// goroutine, so geocoding and database writes stay off the session.
type Recorder struct {
	store    Interface
	sun      *suncalc.SunCalc
	resolver AddressResolver
	log      logger.Logger

	queue chan session.Result
	wg    sync.WaitGroup
	once  sync.Once
}

// NewRecorder starts a Recorder. sun and resolver are optional.
// Call Close to save what is queued and stop it.
func NewRecorder(store Interface, sun *suncalc.SunCalc, resolver AddressResolver) *Recorder {
	r := &Recorder{
		store:    store,
		sun:      sun,
		resolver: resolver,
		log:      logger.Global().Module("datastore"),
		queue:    make(chan session.Result, saveQueueSize),
	}
	r.wg.Go(r.run)
	return r
}

// Hook returns the session result hook. It never blocks; when the queue is
// full the result is dropped and logged.
func (r *Recorder) Hook() session.ResultHook {
	return func(res session.Result) {
		select {
		case r.queue <- res:
		default:
			r.log.Warn("history queue full, dropping result", logger.String("id", res.ID))
		}
	}
}

// Close saves queued results and stops the worker.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.queue)
		r.wg.Wait()
	})
}

func (r *Recorder) run() {
	for res := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if _, err := r.Record(ctx, &res); err != nil {
			r.log.Warn("failed to save result to history", logger.String("id", res.ID), logger.Error(err))
		}
		cancel()
	}
}

// Record converts res and saves it.
func (r *Recorder) Record(ctx context.Context, res *session.Result) (*Detection, error) {
	d := FromResult(res)

	if res.Location != nil {
		if r.sun != nil {
			daylight, err := r.sun.DaylightAt(res.Location.Latitude, res.Location.Longitude, d.RecordedAt)
			if err != nil {
				r.log.Debug("daylight unknown", logger.Error(err))
			}
			d.Daylight = string(daylight)
		}
		if r.resolver != nil {
			d.Address = r.resolver.Address(ctx, res.Location.Latitude, res.Location.Longitude)
		}
	}

	if err := r.store.Save(ctx, d); err != nil {
		return nil, err
	}
	r.log.Debug("result saved to history", logger.String("id", d.UUID), logger.String("species", d.ScientificName))
	return d, nil
}

// FromResult maps a session result onto a Detection row.
func FromResult(res *session.Result) *Detection {
	recordedAt := res.StartedAt
	if recordedAt.IsZero() {
		recordedAt = res.CompletedAt
	}

	d := &Detection{
		UUID:           res.ID,
		RecordedAt:     recordedAt,
		Source:         string(res.Source),
		Filename:       res.Filename,
		Label:          res.Label,
		SpeciesID:      res.SpeciesID,
		ScientificName: res.DisplayName(),
		CommonName:     res.CommonName,
		DurationMs:     res.Duration.Milliseconds(),
	}
	if res.Confidence != nil {
		v := *res.Confidence
		d.Confidence = &v
	}
	if res.Location != nil {
		lat, lng := res.Location.Latitude, res.Location.Longitude
		d.Latitude = &lat
		d.Longitude = &lng
	}
	return d
}
