package myaudio

import (
	"fmt"
	"strings"

	"github.com/phibia-app/phibia-go/internal/errors"
)

// Device errors. ErrDeviceNotFound and ErrDeviceBusy both match ErrDeviceUnavailable.
var (
	ErrPermissionDenied  = errors.NewStd("microphone permission denied")
	ErrDeviceUnavailable = errors.NewStd("audio device unavailable")
	ErrDeviceNotFound    = fmt.Errorf("%w: no capture device found", ErrDeviceUnavailable)
	ErrDeviceBusy        = fmt.Errorf("%w: capture device is busy", ErrDeviceUnavailable)
)

// File errors returned by LoadAudioFile.
var (
	ErrAudioFileEmpty       = errors.NewStd("audio file is empty")
	ErrAudioFileTooLarge    = errors.NewStd("audio file exceeds the upload size limit")
	ErrAudioFileInvalid     = errors.NewStd("audio file format is invalid")
	ErrUnsupportedAudioType = errors.NewStd("unsupported audio file type")
)

// ErrNoAudioCaptured is returned by Stop when the device delivered no samples.
var ErrNoAudioCaptured = errors.NewStd("no audio captured")

// classifyDeviceError maps a backend error onto the device error taxonomy.
// miniaudio reports failures as result strings, so the message is inspected.
func classifyDeviceError(operation string, err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	var sentinel error
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "access denied"),
		strings.Contains(msg, "not permitted"):
		sentinel = ErrPermissionDenied
	case strings.Contains(msg, "busy"), strings.Contains(msg, "in use"):
		sentinel = ErrDeviceBusy
	case strings.Contains(msg, "no device"), strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "not found"), strings.Contains(msg, "no backend"):
		sentinel = ErrDeviceNotFound
	default:
		sentinel = ErrDeviceUnavailable
	}

	category := errors.CategoryAudioDevice
	if sentinel == ErrPermissionDenied {
		category = errors.CategoryPermission
	}

	return errors.New(fmt.Errorf("%w: %w", sentinel, err)).
		Component("myaudio").
		Category(category).
		Context("operation", operation).
		Build()
}
