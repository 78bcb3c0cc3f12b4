package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phibia-app/phibia-go/internal/datastore"
	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/myaudio"
	"github.com/phibia-app/phibia-go/internal/session"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error body with a fresh correlation id.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// HandleError logs err and replies with an ErrorResponse.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.String("ip", c.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("API error", fields...)
	} else {
		s.log.Debug("API error", fields...)
	}

	return c.JSON(code, resp)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, myaudio.ErrAudioFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, myaudio.ErrAudioFileEmpty),
		errors.Is(err, myaudio.ErrAudioFileInvalid),
		errors.Is(err, myaudio.ErrUnsupportedAudioType):
		return http.StatusBadRequest
	case errors.Is(err, myaudio.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, myaudio.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, datastore.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func generateCorrelationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
