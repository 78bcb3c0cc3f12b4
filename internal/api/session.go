package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/presentation"
	"github.com/phibia-app/phibia-go/internal/session"
)

const (
	uploadField     = "audio"
	addressTimeout  = 3 * time.Second
	heartbeatPeriod = 30 * time.Second
)

// SessionResponse is the session state plus its derived view.
type SessionResponse struct {
	Session session.Snapshot  `json:"session"`
	View    presentation.View `json:"view"`
}

func (s *Server) sessionResponse(ctx context.Context, snap *session.Snapshot) SessionResponse {
	view := presentation.Derive(snap, presentation.Elapsed(snap, s.now()))
	if s.geocoder != nil && snap.Result != nil && snap.Result.Location != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, addressTimeout)
		view.Address = s.geocoder.Address(lookupCtx, snap.Result.Location.Latitude, snap.Result.Location.Longitude)
		cancel()
	}
	return SessionResponse{Session: *snap, View: view}
}

// GetSession handles GET /api/v1/session.
func (s *Server) GetSession(c echo.Context) error {
	snap := s.session.Snapshot()
	return c.JSON(http.StatusOK, s.sessionResponse(c.Request().Context(), &snap))
}

// StartRecording handles POST /api/v1/session/record.
func (s *Server) StartRecording(c echo.Context) error {
	if err := s.session.BeginRecording(c.Request().Context()); err != nil {
		return s.HandleError(c, err, "Failed to start recording", statusFor(err))
	}
	return s.replyAfter(c, http.StatusAccepted)
}

// StopRecording handles POST /api/v1/session/stop. With ?wait=true the reply
// is held until the prediction finishes.
func (s *Server) StopRecording(c echo.Context) error {
	if err := s.session.StopAndSubmit(c.Request().Context()); err != nil {
		return s.HandleError(c, err, "Failed to stop recording", statusFor(err))
	}
	return s.replyAfter(c, http.StatusAccepted)
}

// UploadAudio handles POST /api/v1/session/upload with a multipart "audio"
// file. ?wait=true holds the reply until the prediction finishes.
func (s *Server) UploadAudio(c echo.Context) error {
	file, err := c.FormFile(uploadField)
	if err != nil {
		return s.HandleError(c, err, fmt.Sprintf("Missing %q file field", uploadField), http.StatusBadRequest)
	}

	limit := int64(s.config.UploadLimitMB) << 20
	if file.Size > limit {
		return s.HandleError(c, myaudio.ErrAudioFileTooLarge, "Audio file is too large", http.StatusRequestEntityTooLarge)
	}

	src, err := file.Open()
	if err != nil {
		return s.HandleError(c, err, "Failed to read upload", http.StatusBadRequest)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return s.HandleError(c, err, "Failed to read upload", http.StatusBadRequest)
	}

	blob, err := myaudio.NewAudioBlob(file.Filename, data, myaudio.WithMaxSize(limit))
	if err != nil {
		return s.HandleError(c, err, "Invalid audio file", statusFor(err))
	}

	if err := s.session.SelectFile(c.Request().Context(), blob); err != nil {
		return s.HandleError(c, err, "Failed to submit audio", statusFor(err))
	}
	return s.replyAfter(c, http.StatusAccepted)
}

// CancelSession handles POST /api/v1/session/cancel. It always succeeds.
func (s *Server) CancelSession(c echo.Context) error {
	s.session.Cancel()
	snap := s.session.Snapshot()
	return c.JSON(http.StatusOK, s.sessionResponse(c.Request().Context(), &snap))
}

// replyAfter sends the current state, first waiting for the prediction when
// the client asked for ?wait=true.
func (s *Server) replyAfter(c echo.Context, status int) error {
	ctx := c.Request().Context()
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))
	if !wait || s.session.Snapshot().Phase != session.PhaseProcessing {
		snap := s.session.Snapshot()
		return c.JSON(status, s.sessionResponse(ctx, &snap))
	}

	snap, err := s.session.Wait(ctx)
	if err != nil {
		return s.HandleError(c, err, "Request ended before the prediction finished", http.StatusRequestTimeout)
	}
	return c.JSON(http.StatusOK, s.sessionResponse(ctx, &snap))
}

// StreamSession handles GET /api/v1/session/events as server-sent events,
// one "session" event per state change.
func (s *Server) StreamSession(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	snapshots, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	s.wg.Add(1)
	defer s.wg.Done()

	ctx := c.Request().Context()
	current := s.session.Snapshot()
	if err := s.writeEvent(ctx, resp, &current); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := io.WriteString(resp, ": ping\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := s.writeEvent(ctx, resp, &snap); err != nil {
				return nil
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, resp *echo.Response, snap *session.Snapshot) error {
	payload, err := json.Marshal(s.sessionResponse(ctx, snap))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "event: session\ndata: %s\n\n", payload); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
