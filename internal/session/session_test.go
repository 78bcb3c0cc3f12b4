package session

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/geolocation"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/phibia"
	"github.com/phibia-app/phibia-go/internal/testutil"
)

func TestRecordAndSubmit_Result(t *testing.T) {
	t.Parallel()

	mic := &fakeCapturer{}
	pred := newFakePredictor(boanaPrediction(), nil)
	s := newTestSession(t, Options{
		Capturer:  mic,
		Predictor: pred,
		Locator:   &fakeLocator{loc: testLocation},
	})

	var hooked atomic.Value
	s.OnResult(func(r Result) { hooked.Store(r) })

	require.NoError(t, s.BeginRecording(t.Context()))
	snap := s.Snapshot()
	assert.Equal(t, PhaseRecording, snap.Phase)
	assert.Equal(t, SourceMicrophone, snap.Source)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 42, snap.Level.Level)

	// let the position arrive before stopping
	require.Eventually(t, func() bool { return s.Snapshot().Location != nil }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.StopAndSubmit(t.Context()))
	assert.Equal(t, 0, mic.open(), "microphone released on submit")

	snap = waitDone(t, s)
	require.Equal(t, PhaseHasResult, snap.Phase)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 3, snap.Result.SpeciesID)
	assert.Equal(t, "Boana_pulchella", snap.Result.SpeciesName)
	assert.Equal(t, "Boana pulchella", snap.Result.DisplayName())
	require.NotNil(t, snap.Result.Confidence)
	assert.InDelta(t, 87.5, *snap.Result.Confidence, 1e-9)
	assert.Equal(t, "Ranita del zarzal", snap.Result.CommonName)
	assert.Empty(t, snap.ErrorMessage)
	assert.False(t, snap.ResultAt.IsZero())

	sent := pred.sentLocation()
	require.NotNil(t, sent)
	assert.InDelta(t, -33.123, sent.Latitude, 1e-9)

	require.Eventually(t, func() bool { return hooked.Load() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, snap.ID, hooked.Load().(Result).ID)
}

func TestBeginThenCancel_ReleasesMicAndSendsNothing(t *testing.T) {
	t.Parallel()

	mic := &fakeCapturer{}
	pred := newFakePredictor(boanaPrediction(), nil)
	s := newTestSession(t, Options{Capturer: mic, Predictor: pred, Locator: &fakeLocator{delay: -1}})

	require.NoError(t, s.BeginRecording(t.Context()))
	s.Cancel()

	snap := s.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, mic.open())
	assert.Equal(t, int32(1), mic.opens.Load())
	assert.Equal(t, 0, pred.callCount())
	assert.Empty(t, snap.ErrorMessage)
	assert.False(t, snap.LocationPending)
}

func TestCancelWhileDeviceOpening(t *testing.T) {
	t.Parallel()

	mic := &fakeCapturer{gate: make(chan struct{})}
	s := newTestSession(t, Options{Capturer: mic, Predictor: newFakePredictor(nil, nil)})

	errCh := make(chan error, 1)
	go func() { errCh <- s.BeginRecording(context.Background()) }()

	require.Eventually(t, func() bool { return s.Snapshot().Phase == PhaseRecording }, time.Second, time.Millisecond)
	s.Cancel()
	close(mic.gate)

	require.NoError(t, <-errCh)
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)
	assert.Equal(t, 0, mic.open(), "handle opened after cancel is released")
}

func TestCancelInEveryPhase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T, s *Session, pred *fakePredictor)
		phase Phase
	}{
		{
			name:  "recording",
			setup: func(t *testing.T, s *Session, _ *fakePredictor) { require.NoError(t, s.BeginRecording(t.Context())) },
			phase: PhaseRecording,
		},
		{
			name: "processing",
			setup: func(t *testing.T, s *Session, pred *fakePredictor) {
				require.NoError(t, s.BeginRecording(t.Context()))
				require.NoError(t, s.StopAndSubmit(t.Context()))
				waitStarted(t, pred)
			},
			phase: PhaseProcessing,
		},
		{
			name: "has result",
			setup: func(t *testing.T, s *Session, pred *fakePredictor) {
				pred.block = false
				require.NoError(t, s.BeginRecording(t.Context()))
				require.NoError(t, s.StopAndSubmit(t.Context()))
				waitDone(t, s)
			},
			phase: PhaseHasResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mic := &fakeCapturer{}
			pred := newFakePredictor(boanaPrediction(), nil)
			pred.block = true
			s := newTestSession(t, Options{Capturer: mic, Predictor: pred, Locator: &fakeLocator{delay: -1}})

			tt.setup(t, s, pred)
			require.Equal(t, tt.phase, s.Snapshot().Phase)

			s.Cancel()
			snap := s.Snapshot()
			assert.Equal(t, PhaseIdle, snap.Phase)
			assert.Nil(t, snap.Result)
			assert.Empty(t, snap.ErrorMessage)
			assert.Empty(t, snap.ID)
			assert.Equal(t, 0, mic.open())

			if tt.phase == PhaseProcessing {
				require.Eventually(t, pred.cancelled.Load, time.Second, time.Millisecond, "request aborted")
			}
		})
	}
}

func TestCancelDuringProcessing_DiscardsLateResult(t *testing.T) {
	t.Parallel()

	pred := newFakePredictor(boanaPrediction(), nil)
	pred.block = true
	s := newTestSession(t, Options{Capturer: &fakeCapturer{}, Predictor: pred})

	require.NoError(t, s.BeginRecording(t.Context()))
	require.NoError(t, s.StopAndSubmit(t.Context()))
	waitStarted(t, pred)

	// whichever of response and abort lands first, the session ends idle
	close(pred.release)
	s.Cancel()

	time.Sleep(20 * time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Result)
}

func TestAbortMidUpload_NoErrorShown(t *testing.T) {
	t.Parallel()

	abort := errors.New(fmt.Errorf("%w: predict", phibia.ErrAborted)).
		Component("phibia-api").
		Category(errors.CategoryCancellation).
		Build()
	pred := newFakePredictor(nil, abort)
	s := newTestSession(t, Options{Capturer: &fakeCapturer{}, Predictor: pred})

	require.NoError(t, s.BeginRecording(t.Context()))
	require.NoError(t, s.StopAndSubmit(t.Context()))

	snap := waitDone(t, s)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.ErrorMessage)
	assert.NoError(t, snap.Err)
}

func TestSubmitWithoutResolvedLocation(t *testing.T) {
	t.Parallel()

	pred := newFakePredictor(boanaPrediction(), nil)
	s := newTestSession(t, Options{
		Capturer:  &fakeCapturer{},
		Predictor: pred,
		Locator:   &fakeLocator{delay: -1},
	})

	require.NoError(t, s.BeginRecording(t.Context()))
	assert.True(t, s.Snapshot().LocationPending)
	require.NoError(t, s.StopAndSubmit(t.Context()))

	snap := waitDone(t, s)
	assert.Equal(t, PhaseHasResult, snap.Phase)
	assert.Nil(t, pred.sentLocation())
	assert.Nil(t, snap.Result.Location)
	assert.False(t, snap.LocationPending)
	assert.Empty(t, snap.LocationError)
}

func TestGeolocationDenied_NotFatal(t *testing.T) {
	t.Parallel()

	denied := errors.New(geolocation.ErrPermissionDenied).
		Component("geolocation").
		Category(errors.CategoryPermission).
		Build()
	pred := newFakePredictor(boanaPrediction(), nil)
	s := newTestSession(t, Options{
		Capturer:  &fakeCapturer{},
		Predictor: pred,
		Locator:   &fakeLocator{err: denied},
	})

	require.NoError(t, s.BeginRecording(t.Context()))
	require.Eventually(t, func() bool { return s.Snapshot().LocationError != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseRecording, s.Snapshot().Phase)

	require.NoError(t, s.StopAndSubmit(t.Context()))
	snap := waitDone(t, s)
	assert.Equal(t, PhaseHasResult, snap.Phase)
	assert.Nil(t, pred.sentLocation())
	assert.Contains(t, snap.LocationError, "permission denied")
}

func TestMicrophoneFailure(t *testing.T) {
	t.Parallel()

	denied := errors.New(fmt.Errorf("%w: access denied", myaudio.ErrPermissionDenied)).
		Component("myaudio").
		Category(errors.CategoryPermission).
		Build()
	pred := newFakePredictor(boanaPrediction(), nil)
	s := newTestSession(t, Options{Capturer: &fakeCapturer{err: denied}, Predictor: pred, Locator: &fakeLocator{delay: -1}})

	err := s.BeginRecording(t.Context())
	require.ErrorIs(t, err, myaudio.ErrPermissionDenied)

	snap := s.Snapshot()
	assert.Equal(t, PhaseErrored, snap.Phase)
	assert.Contains(t, snap.ErrorMessage, "access denied")
	assert.False(t, snap.LocationPending)
	assert.Equal(t, 0, pred.callCount())

	s.Reset()
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)
}

func TestStopFailure(t *testing.T) {
	t.Parallel()

	mic := &fakeCapturer{}
	s := newTestSession(t, Options{Capturer: mic, Predictor: newFakePredictor(boanaPrediction(), nil)})

	require.NoError(t, s.BeginRecording(t.Context()))
	mic.handles[0].stopErr = myaudio.ErrNoAudioCaptured

	err := s.StopAndSubmit(t.Context())
	require.ErrorIs(t, err, myaudio.ErrNoAudioCaptured)
	assert.Equal(t, PhaseErrored, s.Snapshot().Phase)
	assert.Equal(t, 0, mic.open())
}

func TestServerError_MessageVerbatim(t *testing.T) {
	t.Parallel()

	serverErr := errors.New(&phibia.ServerError{Status: http.StatusBadRequest, Message: "No audio file provided"}).
		Component("phibia-api").
		Category(errors.CategoryHTTP).
		Build()
	mic := &fakeCapturer{}
	s := newTestSession(t, Options{Capturer: mic, Predictor: newFakePredictor(nil, serverErr)})

	require.NoError(t, s.BeginRecording(t.Context()))
	require.NoError(t, s.StopAndSubmit(t.Context()))

	snap := waitDone(t, s)
	assert.Equal(t, PhaseErrored, snap.Phase)
	assert.Equal(t, "No audio file provided", snap.ErrorMessage)
	assert.Equal(t, 0, mic.open())
}

func TestNilPredictionIsAnError(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Options{Capturer: &fakeCapturer{}, Predictor: newFakePredictor(nil, nil)})

	require.NoError(t, s.BeginRecording(t.Context()))
	require.NoError(t, s.StopAndSubmit(t.Context()))

	snap := waitDone(t, s)
	assert.Equal(t, PhaseErrored, snap.Phase)
	assert.ErrorIs(t, snap.Err, phibia.ErrInvalidResponse)
}

func TestInvalidTransitions(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Options{Capturer: &fakeCapturer{}, Predictor: newFakePredictor(boanaPrediction(), nil)})

	assert.ErrorIs(t, s.StopAndSubmit(t.Context()), ErrInvalidTransition)

	require.NoError(t, s.BeginRecording(t.Context()))
	assert.ErrorIs(t, s.BeginRecording(t.Context()), ErrInvalidTransition)
	assert.ErrorIs(t, s.SelectFile(t.Context(), myaudio.AudioBlob{Data: []byte("x")}), ErrInvalidTransition)

	// cancel from idle is a no-op
	s.Cancel()
	gen := s.Snapshot().Generation
	s.Cancel()
	assert.Equal(t, gen, s.Snapshot().Generation)
}

func TestSelectFile_WaitsForLocation(t *testing.T) {
	t.Parallel()

	pred := newFakePredictor(boanaPrediction(), nil)
	s := newTestSession(t, Options{
		Predictor:          pred,
		Locator:            &fakeLocator{loc: testLocation, delay: 20 * time.Millisecond},
		UploadLocationWait: time.Second,
	})

	blob := myaudio.AudioBlob{Data: []byte("fLaC"), Filename: "charca.flac", ContentType: "audio/flac"}
	require.NoError(t, s.SelectFile(t.Context(), blob))
	assert.Equal(t, PhaseProcessing, s.Snapshot().Phase)

	snap := waitDone(t, s)
	assert.Equal(t, PhaseHasResult, snap.Phase)
	assert.Equal(t, SourceUpload, snap.Result.Source)
	assert.Equal(t, "charca.flac", snap.Result.Filename)
	require.NotNil(t, pred.sentLocation())
	assert.Equal(t, "static", pred.sentLocation().Source)
}

func TestSelectFile_LocationWaitExpires(t *testing.T) {
	t.Parallel()

	pred := newFakePredictor(boanaPrediction(), nil)
	s := newTestSession(t, Options{
		Predictor:          pred,
		Locator:            &fakeLocator{delay: -1},
		UploadLocationWait: 20 * time.Millisecond,
	})

	require.NoError(t, s.SelectFile(t.Context(), myaudio.AudioBlob{Data: []byte("RIFF"), Filename: "a.wav"}))
	snap := waitDone(t, s)
	assert.Equal(t, PhaseHasResult, snap.Phase)
	assert.Nil(t, pred.sentLocation())
}

func TestSelectFile_RejectsEmptyBlob(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Options{Predictor: newFakePredictor(boanaPrediction(), nil)})

	err := s.SelectFile(t.Context(), myaudio.AudioBlob{Filename: "a.wav"})
	assert.ErrorIs(t, err, myaudio.ErrAudioFileEmpty)
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)
}

func TestBeginRecording_NoCapturer(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Options{Predictor: newFakePredictor(nil, nil)})
	assert.ErrorIs(t, s.BeginRecording(t.Context()), myaudio.ErrDeviceUnavailable)
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, Options{Capturer: &fakeCapturer{}, Predictor: newFakePredictor(boanaPrediction(), nil)})
	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.NoError(t, s.BeginRecording(t.Context()))
	require.NoError(t, s.StopAndSubmit(t.Context()))
	waitDone(t, s)

	var phases []Phase
	testutil.ReceiveUntil(t, updates, testutil.ShortTestTimeout, func(snap Snapshot) bool {
		if len(phases) == 0 || phases[len(phases)-1] != snap.Phase {
			phases = append(phases, snap.Phase)
		}
		return len(phases) == 3
	})
	assert.Equal(t, []Phase{PhaseRecording, PhaseProcessing, PhaseHasResult}, phases)
}

func TestClose(t *testing.T) {
	t.Parallel()

	mic := &fakeCapturer{}
	pred := newFakePredictor(boanaPrediction(), nil)
	pred.block = true
	s := New(Options{Capturer: mic, Predictor: pred, Locator: &fakeLocator{delay: -1}})
	updates, _ := s.Subscribe()

	require.NoError(t, s.BeginRecording(t.Context()))
	require.NoError(t, s.StopAndSubmit(t.Context()))
	waitStarted(t, pred)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	for range updates {
		// drain until closed
	}
	assert.Equal(t, 0, mic.open())
	assert.True(t, pred.cancelled.Load())
	assert.ErrorIs(t, s.BeginRecording(t.Context()), ErrClosed)

	late, _ := s.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}

func TestWait_ContextDeadline(t *testing.T) {
	t.Parallel()

	pred := newFakePredictor(boanaPrediction(), nil)
	pred.block = true
	s := newTestSession(t, Options{Capturer: &fakeCapturer{}, Predictor: pred})

	require.NoError(t, s.BeginRecording(t.Context()))
	require.NoError(t, s.StopAndSubmit(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	snap, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, PhaseProcessing, snap.Phase)
}

func TestPhaseString(t *testing.T) {
	t.Parallel()

	text, err := PhaseHasResult.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "has_result", string(text))
	assert.Equal(t, "unknown", Phase(99).String())
}
