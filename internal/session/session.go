package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/phibia"
)

const (
	defaultLocationTimeout = geolocation.DefaultTimeout
	defaultUploadWait      = 2 * time.Second
	subscriberBuffer       = 32
)

// Predictor submits a clip for classification.
type Predictor interface {
	Predict(ctx context.Context, blob myaudio.AudioBlob, loc *geolocation.Location) (*phibia.Prediction, error)
}

// ResultHook is called once for every prediction that reaches PhaseHasResult.
// Hooks run on the session's goroutine and must not call Close.
type ResultHook func(Result)

// Options configures a Session.
type Options struct {
	Capturer  myaudio.Capturer
	Predictor Predictor
	// Locator is optional; without it no coordinates are ever sent
	Locator geolocation.Locator

	// LocationTimeout bounds one position request
	LocationTimeout time.Duration

	// UploadLocationWait is how long an upload waits for a pending position
	// before it is sent without one. Negative disables the wait.
	UploadLocationWait time.Duration
}

// Session is the record/upload to prediction state machine.
// All state is guarded by mu; background work carries the generation it
// was started in and is discarded once the generation moves on.
type Session struct {
	capturer        myaudio.Capturer
	predictor       Predictor
	locator         geolocation.Locator
	locationTimeout time.Duration
	uploadWait      time.Duration

	mu            sync.Mutex
	phase         Phase
	gen           uint64
	id            string
	source        Source
	startedAt     time.Time
	capture       myaudio.CaptureHandle
	cancelRequest context.CancelFunc
	cancelLocate  context.CancelFunc
	locDone       chan struct{}
	location      *geolocation.Location
	locErr        string
	locPending    bool
	result        *Result
	resultAt      time.Time
	errMsg        string
	err           error

	subscribers map[int]chan Snapshot
	nextSub     int
	changed     chan struct{}
	hooks       []ResultHook
	closed      bool

	ctx       context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	now func() time.Time
	log logger.Logger
}

// New creates an idle session.
func New(opts Options) *Session {
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = defaultLocationTimeout
	}
	switch {
	case opts.UploadLocationWait == 0:
		opts.UploadLocationWait = defaultUploadWait
	case opts.UploadLocationWait < 0:
		opts.UploadLocationWait = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		capturer:        opts.Capturer,
		predictor:       opts.Predictor,
		locator:         opts.Locator,
		locationTimeout: opts.LocationTimeout,
		uploadWait:      opts.UploadLocationWait,
		subscribers:     make(map[int]chan Snapshot),
		changed:         make(chan struct{}),
		ctx:             ctx,
		cancelAll:       cancel,
		now:             time.Now,
		log:             logger.Global().Module("session"),
	}
}

// OnResult registers a hook for successful predictions.
func (s *Session) OnResult(hook ResultHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// BeginRecording opens the microphone and starts a position request.
// ctx bounds opening the device only; the cycle itself lives until it is
// submitted, cancelled or the session is closed.
func (s *Session) BeginRecording(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkPhaseLocked("begin_recording", PhaseIdle); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.capturer == nil {
		s.mu.Unlock()
		return errors.New(fmt.Errorf("%w: no audio input configured", myaudio.ErrDeviceUnavailable)).
			Component("session").
			Category(errors.CategoryAudioDevice).
			Build()
	}

	// a handle left over from an earlier cycle is released first
	s.releaseCaptureLocked()
	gen := s.beginCycleLocked(SourceMicrophone)
	s.phase = PhaseRecording
	s.startLocationLocked(gen)
	s.notifyLocked()
	s.mu.Unlock()

	handle, err := s.capturer.StartCapture(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		// cancelled while the device was opening
		if err == nil {
			if _, stopErr := handle.Stop(); stopErr != nil && !errors.Is(stopErr, myaudio.ErrNoAudioCaptured) {
				s.log.Debug("stale capture release failed", logger.Error(stopErr))
			}
		}
		return nil
	}
	if err != nil {
		s.log.Warn("failed to open microphone", logger.Error(err))
		s.stopLocationLocked()
		s.failLocked(err)
		return err
	}

	s.capture = handle
	s.log.Info("recording started", logger.String("cycle_id", s.id))
	return nil
}

// StopAndSubmit stops the recording and submits it. It returns once the
// request is in flight; use Wait or Subscribe for the outcome.
func (s *Session) StopAndSubmit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPhaseLocked("stop_and_submit", PhaseRecording); err != nil {
		return err
	}
	if s.capture == nil {
		return errors.New(fmt.Errorf("%w: microphone is still opening", ErrInvalidTransition)).
			Component("session").
			Category(errors.CategoryState).
			Build()
	}

	handle := s.capture
	s.capture = nil
	blob, err := handle.Stop()
	if err != nil {
		s.log.Warn("failed to finish recording", logger.Error(err))
		s.stopLocationLocked()
		s.failLocked(err)
		return err
	}

	// a position that has not arrived by now is not waited for
	s.stopLocationLocked()
	s.submitLocked(blob, s.location, nil)
	return nil
}

// SelectFile submits an existing clip, skipping the recording phase.
// A position request starts alongside and the upload waits briefly for it.
func (s *Session) SelectFile(_ context.Context, blob myaudio.AudioBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPhaseLocked("select_file", PhaseIdle); err != nil {
		return err
	}
	if blob.IsEmpty() {
		return errors.New(myaudio.ErrAudioFileEmpty).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	gen := s.beginCycleLocked(SourceUpload)
	s.startLocationLocked(gen)

	var waitFor <-chan struct{}
	if s.locPending && s.uploadWait > 0 {
		waitFor = s.locDone
	}
	s.submitLocked(blob, s.location, waitFor)
	return nil
}

// Cancel returns to PhaseIdle from any phase. It aborts the request in
// flight and releases the microphone before returning.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Reset clears a result or error. It is the same as Cancel.
func (s *Session) Reset() {
	s.Cancel()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot on every transition and a
// function to stop the subscription. When the subscriber falls behind the
// oldest pending snapshot is dropped. The channel is closed by Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
}

// Wait blocks until the session leaves PhaseProcessing and returns that state.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.phase != PhaseProcessing {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// Close cancels the current cycle, waits for background work and closes
// subscriber channels. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.cancelLocked()
		s.closed = true
		s.mu.Unlock()

		s.cancelAll()
		s.wg.Wait()

		s.mu.Lock()
		for id, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, id)
		}
		s.mu.Unlock()
	})
	return nil
}

func (s *Session) checkPhaseLocked(op string, want Phase) error {
	if s.closed {
		return errors.New(ErrClosed).
			Component("session").
			Category(errors.CategoryState).
			Context("operation", op).
			Build()
	}
	if s.phase != want {
		return errors.New(fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, s.phase)).
			Component("session").
			Category(errors.CategoryState).
			Context("operation", op).
			Context("phase", s.phase.String()).
			Build()
	}
	return nil
}

// beginCycleLocked moves to a new generation and clears the previous cycle.
func (s *Session) beginCycleLocked(source Source) uint64 {
	s.gen++
	s.clearLocked()
	s.id = uuid.NewString()
	s.source = source
	s.startedAt = s.now()
	return s.gen
}

func (s *Session) clearLocked() {
	s.id = ""
	s.source = ""
	s.startedAt = time.Time{}
	s.location = nil
	s.locErr = ""
	s.locPending = false
	s.locDone = nil
	s.result = nil
	s.resultAt = time.Time{}
	s.errMsg = ""
	s.err = nil
}

func (s *Session) cancelLocked() {
	if s.phase == PhaseIdle && s.capture == nil && s.cancelRequest == nil && s.cancelLocate == nil {
		return
	}

	from := s.phase
	s.gen++
	if s.cancelRequest != nil {
		s.cancelRequest()
		s.cancelRequest = nil
	}
	s.stopLocationLocked()
	s.releaseCaptureLocked()
	s.clearLocked()
	s.phase = PhaseIdle

	s.log.Debug("session cancelled", logger.String("from", from.String()))
	s.notifyLocked()
}

// releaseCaptureLocked stops and discards the active capture.
func (s *Session) releaseCaptureLocked() {
	if s.capture == nil {
		return
	}
	handle := s.capture
	s.capture = nil
	if _, err := handle.Stop(); err != nil && !errors.Is(err, myaudio.ErrNoAudioCaptured) {
		s.log.Debug("capture release reported an error", logger.Error(err))
	}
}

func (s *Session) failLocked(err error) {
	s.phase = PhaseErrored
	s.err = err
	s.errMsg = err.Error()
	s.notifyLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		Phase:           s.phase,
		Generation:      s.gen,
		Source:          s.source,
		StartedAt:       s.startedAt,
		Result:          s.result.clone(),
		ResultAt:        s.resultAt,
		ErrorMessage:    s.errMsg,
		Err:             s.err,
		LocationError:   s.locErr,
		LocationPending: s.locPending,
	}
	if s.location != nil {
		loc := *s.location
		snap.Location = &loc
	}
	if reporter, ok := s.capture.(myaudio.LevelReporter); ok && s.phase == PhaseRecording {
		snap.Level = reporter.Level()
	}
	return snap
}

// notifyLocked publishes the current state and wakes Wait callers.
func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	close(s.changed)
	s.changed = make(chan struct{})
}
