package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/httpclient"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/observability/metrics"
	"github.com/phibia-app/phibia-go/internal/phibia"
	"github.com/phibia-app/phibia-go/internal/session"
)

// InstrumentClient records every backend round trip made through client.
func InstrumentClient(client *httpclient.Client, m *metrics.HTTPMetrics) {
	var started sync.Map // *http.Request -> time.Time

	client.SetBeforeRequestHook(func(req *http.Request) {
		started.Store(req, time.Now())
	})
	client.SetAfterResponseHook(func(req *http.Request, resp *http.Response, _ error) {
		var elapsed float64
		if v, ok := started.LoadAndDelete(req); ok {
			elapsed = time.Since(v.(time.Time)).Seconds()
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		m.RecordClientRequest(req.Method, req.URL.Path, status, elapsed)
	})
}

type instrumentedPredictor struct {
	next    session.Predictor
	metrics *metrics.SessionMetrics
}

// InstrumentPredictor wraps p so every prediction is counted and timed.
func InstrumentPredictor(p session.Predictor, m *metrics.SessionMetrics) session.Predictor {
	return &instrumentedPredictor{next: p, metrics: m}
}

func (p *instrumentedPredictor) Predict(ctx context.Context, blob myaudio.AudioBlob, loc *geolocation.Location) (*phibia.Prediction, error) {
	start := time.Now()
	p.metrics.ObserveUploadSize(blob.Size())

	pred, err := p.next.Predict(ctx, blob, loc)

	p.metrics.RecordDuration(metrics.OpPredict, time.Since(start).Seconds())
	recordOutcome(p.metrics, metrics.OpPredict, err)
	return pred, err
}

type instrumentedLocator struct {
	next     geolocation.Locator
	recorder metrics.Recorder
}

// InstrumentLocator wraps l so position lookups are counted and timed.
func InstrumentLocator(l geolocation.Locator, rec metrics.Recorder) geolocation.Locator {
	return &instrumentedLocator{next: l, recorder: rec}
}

func (l *instrumentedLocator) CurrentLocation(ctx context.Context, timeout time.Duration) (geolocation.Location, error) {
	start := time.Now()
	loc, err := l.next.CurrentLocation(ctx, timeout)
	l.recorder.RecordDuration(metrics.OpLocate, time.Since(start).Seconds())
	recordOutcome(l.recorder, metrics.OpLocate, err)
	return loc, err
}

// WatchSession counts phase changes and results of s until the returned
// function is called or the session closes.
func WatchSession(s *session.Session, m *metrics.SessionMetrics) (stop func()) {
	s.OnResult(func(res session.Result) {
		m.RecordResult(res.DisplayName(), string(res.Source), res.Confidence)
	})

	snapshots, unsubscribe := s.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := session.PhaseIdle
		for snap := range snapshots {
			if snap.Phase != last {
				m.RecordTransition(snap.Phase.String())
				last = snap.Phase
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func recordOutcome(rec metrics.Recorder, operation string, err error) {
	switch {
	case err == nil:
		rec.RecordOperation(operation, metrics.StatusSuccess)
	case phibia.IsAborted(err) || errors.Is(err, context.Canceled):
		rec.RecordOperation(operation, metrics.StatusCancelled)
	default:
		rec.RecordOperation(operation, metrics.StatusError)
		rec.RecordError(operation, errorType(err))
	}
}

func errorType(err error) string {
	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		if category := enhanced.GetCategory(); category != "" {
			return category
		}
	}
	return "unknown"
}
