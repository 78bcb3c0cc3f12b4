package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/presentation"
	"github.com/phibia-app/phibia-go/internal/session"
)

const (
	progressInterval = 200 * time.Millisecond
	addressTimeout   = 3 * time.Second
)

// ProgressFunc receives the session state while a clip is recorded or
// processed. remaining is zero once recording has stopped.
type ProgressFunc func(snap session.Snapshot, remaining time.Duration)

// Record captures for duration, submits the clip and waits for the outcome.
// When ctx is cancelled the session is cancelled, the microphone released
// and ctx.Err() returned with the resulting idle snapshot.
func (a *Analyzer) Record(ctx context.Context, duration time.Duration, progress ProgressFunc) (session.Snapshot, error) {
	if err := a.Session.BeginRecording(ctx); err != nil {
		return a.Session.Snapshot(), err
	}
	a.log.Info("recording started", logger.Duration("duration", duration))

	deadline := time.Now().Add(duration)
	timer := time.NewTimer(duration)
	defer timer.Stop()
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

recording:
	for {
		select {
		case <-ctx.Done():
			return a.abort(ctx)
		case <-timer.C:
			break recording
		case <-ticker.C:
			if progress != nil {
				progress(a.Session.Snapshot(), time.Until(deadline).Round(time.Second))
			}
		}
	}

	if err := a.Session.StopAndSubmit(ctx); err != nil {
		return a.Session.Snapshot(), err
	}
	return a.await(ctx, progress)
}

// IdentifyFile loads an audio file, submits it and waits for the outcome.
func (a *Analyzer) IdentifyFile(ctx context.Context, path string, progress ProgressFunc) (session.Snapshot, error) {
	limit := int64(a.settings.Audio.MaxUploadSizeMB) << 20
	blob, err := myaudio.LoadAudioFile(path, myaudio.WithMaxSize(limit))
	if err != nil {
		return a.Session.Snapshot(), err
	}
	a.log.Info("submitting file",
		logger.String("file", blob.Filename),
		logger.Int("bytes", blob.Size()),
		logger.Duration("duration", blob.Duration))

	if err := a.Session.SelectFile(ctx, blob); err != nil {
		return a.Session.Snapshot(), err
	}
	return a.await(ctx, progress)
}

// await waits for the prediction. An errored session is returned with its
// error; an aborted one is not an error.
func (a *Analyzer) await(ctx context.Context, progress ProgressFunc) (session.Snapshot, error) {
	if progress != nil {
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Go(func() {
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					progress(a.Session.Snapshot(), 0)
				}
			}
		})
		defer func() {
			close(done)
			wg.Wait()
		}()
	}

	snap, err := a.Session.Wait(ctx)
	if err != nil {
		return a.abort(ctx)
	}
	if snap.Phase == session.PhaseErrored {
		return snap, snap.Err
	}
	return snap, nil
}

func (a *Analyzer) abort(ctx context.Context) (session.Snapshot, error) {
	a.Session.Cancel()
	a.log.Info("session cancelled")
	return a.Session.Snapshot(), ctx.Err()
}

// View derives the fully revealed view of snap. The address is filled in
// when a geocoder is configured and a position was sent.
func (a *Analyzer) View(ctx context.Context, snap *session.Snapshot) presentation.View {
	view := presentation.Derive(snap, presentation.RevealDelay)
	geocoder := a.Geocoder()
	if geocoder == nil || snap.Result == nil || snap.Result.Location == nil {
		return view
	}
	lookupCtx, cancel := context.WithTimeout(ctx, addressTimeout)
	defer cancel()
	view.Address = geocoder.Address(lookupCtx, snap.Result.Location.Latitude, snap.Result.Location.Longitude)
	return view
}
