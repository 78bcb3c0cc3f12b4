package phibia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/phibia-app/phibia-go/internal/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

var (
	// ErrAborted is returned when the caller cancelled the request.
	// It is never shown to the user.
	ErrAborted = errors.NewStd("request aborted")

	// ErrNotAuthenticated is returned for 401/422 on endpoints that need a login.
	ErrNotAuthenticated = errors.NewStd("not authenticated")

	// ErrInvalidResponse is returned when a 2xx body cannot be decoded.
	ErrInvalidResponse = errors.NewStd("invalid response from server")
)

// ServerError is a non-2xx response. Message is the backend's error text verbatim,
// or the HTTP status text when the body carries none.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// NetworkError is a transport failure: DNS, connection, TLS or timeout.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsAborted reports whether err is a caller-initiated abort.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// transportError classifies an error returned by the HTTP client.
// Cancellation of ctx yields ErrAborted; everything else is a NetworkError.
func transportError(ctx context.Context, op, rawURL string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return errors.New(fmt.Errorf("%w: %s", ErrAborted, op)).
			Component("phibia-api").
			Category(errors.CategoryCancellation).
			Context("operation", op).
			Build()
	}

	category := errors.CategoryNetwork
	netErr := &NetworkError{Op: op, URL: rawURL, Err: err}
	if netErr.Timeout() {
		category = errors.CategoryTimeout
	}
	return errors.New(netErr).
		Component("phibia-api").
		Category(category).
		Context("operation", op).
		NetworkContext(rawURL, 0).
		Build()
}

// errorBody covers the error shapes the backend emits: {"error"} from route
// handlers, {"msg"} from the JWT layer and {"message"} elsewhere.
type errorBody struct {
	Error   string `json:"error"`
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// serverError builds a ServerError from a non-2xx response.
func serverError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := ""
	var parsed errorBody
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != "":
			message = parsed.Error
		case parsed.Msg != "":
			message = parsed.Msg
		case parsed.Message != "":
			message = parsed.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	category := errors.CategoryServer
	switch {
	case resp.StatusCode == http.StatusNotFound:
		category = errors.CategoryNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		category = errors.CategoryAuth
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		category = errors.CategoryHTTP
	}

	return errors.New(&ServerError{Status: resp.StatusCode, Message: message}).
		Component("phibia-api").
		Category(category).
		Context("operation", op).
		Context("status", resp.StatusCode).
		Build()
}

// notAuthenticated wraps ErrNotAuthenticated with the backend's reason.
func notAuthenticated(op string, resp *http.Response) error {
	reason := serverError(op, resp)
	return errors.New(fmt.Errorf("%w: %s", ErrNotAuthenticated, strings.TrimSpace(reason.Error()))).
		Component("phibia-api").
		Category(errors.CategoryAuth).
		Context("operation", op).
		Context("status", resp.StatusCode).
		Build()
}

func decodeError(op string, err error) error {
	return errors.New(fmt.Errorf("%w: %w", ErrInvalidResponse, err)).
		Component("phibia-api").
		Category(errors.CategoryFileParsing).
		Context("operation", op).
		Build()
}
