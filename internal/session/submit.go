package session

import (
	"context"
	"time"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/phibia"
)

// startLocationLocked requests the position in the background. The result
// is stored only if the generation is unchanged when it arrives.
func (s *Session) startLocationLocked(gen uint64) {
	if s.locator == nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.cancelLocate = cancel
	s.locDone = done
	s.locPending = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()

		loc, err := s.locator.CurrentLocation(ctx, s.locationTimeout)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		s.locPending = false
		s.cancelLocate = nil

		switch {
		case err == nil:
			s.location = &loc
			s.log.Debug("location resolved", logger.String("source", loc.Source))
		case ctx.Err() != nil && errors.Is(err, context.Canceled):
			// stopped by submission
		default:
			s.locErr = err.Error()
			s.log.Info("location unavailable, continuing without coordinates", logger.Error(err))
		}
		s.notifyLocked()
	}()
}

// stopLocationLocked abandons a pending position request.
func (s *Session) stopLocationLocked() {
	if s.cancelLocate != nil {
		s.cancelLocate()
		s.cancelLocate = nil
	}
	s.locPending = false
}

// submitLocked moves to PhaseProcessing and starts the request. When
// waitFor is set the request waits for it, up to the upload wait, and sends
// whatever position is known by then.
func (s *Session) submitLocked(blob myaudio.AudioBlob, loc *geolocation.Location, waitFor <-chan struct{}) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelRequest = cancel
	s.phase = PhaseProcessing
	gen := s.gen
	startedAt := s.startedAt
	source := s.source
	id := s.id

	s.log.Info("submitting clip",
		logger.String("cycle_id", id),
		logger.String("source", string(source)),
		logger.Int("bytes", blob.Size()),
		logger.Bool("has_location", loc != nil))
	s.notifyLocked()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		sent := loc
		if waitFor != nil {
			sent = s.awaitLocation(ctx, gen, waitFor)
		}
		if sent != nil {
			cp := *sent
			sent = &cp
		}

		pred, err := s.predictor.Predict(ctx, blob, sent)
		if err == nil && pred == nil {
			err = errors.New(phibia.ErrInvalidResponse).
				Component("session").
				Category(errors.CategoryHTTP).
				Build()
		}
		s.complete(gen, result(id, source, startedAt, blob, sent, pred), err)
	}()
}

// awaitLocation waits for the pending position request and returns the fix,
// or nil once the upload wait has passed.
func (s *Session) awaitLocation(ctx context.Context, gen uint64, done <-chan struct{}) *geolocation.Location {
	timer := time.NewTimer(s.uploadWait)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.stopLocationLocked()
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// complete applies a prediction outcome unless the cycle was cancelled.
func (s *Session) complete(gen uint64, res *Result, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Debug("discarding stale prediction", logger.Int64("generation", int64(gen)))
		return
	}
	s.cancelRequest = nil

	var hooks []ResultHook
	switch {
	case err == nil:
		res.CompletedAt = s.now()
		s.result = res
		s.resultAt = res.CompletedAt
		s.phase = PhaseHasResult
		hooks = append(hooks, s.hooks...)
		s.log.Info("prediction received",
			logger.String("cycle_id", res.ID),
			logger.String("species", res.SpeciesName),
			logger.Int("species_id", res.SpeciesID))
		s.notifyLocked()
	case phibia.IsAborted(err) || errors.Is(err, context.Canceled):
		// aborts are silent
		s.clearLocked()
		s.phase = PhaseIdle
		s.notifyLocked()
	default:
		s.log.Warn("prediction failed", logger.Error(err))
		s.failLocked(err)
	}
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(*res.clone())
	}
}

func result(id string, source Source, startedAt time.Time, blob myaudio.AudioBlob, loc *geolocation.Location, pred *phibia.Prediction) *Result {
	if pred == nil {
		return nil
	}
	res := &Result{
		ID:          id,
		Label:       pred.Label,
		SpeciesID:   pred.Species.ID,
		SpeciesName: pred.Species.Name,
		Location:    loc,
		Source:      source,
		Filename:    blob.Filename,
		Duration:    blob.Duration,
		StartedAt:   startedAt,
	}
	if pred.Confidence != nil {
		v := *pred.Confidence
		res.Confidence = &v
	}
	if pred.Details != nil {
		res.CommonName = pred.Details.CommonName
		res.Description = pred.Details.Description
	}
	return res
}
