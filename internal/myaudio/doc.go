// Package myaudio captures short microphone clips and loads audio files for
// species identification.
//
// A Capturer opens the input device and returns a CaptureHandle. The handle
// owns the device until Stop is called; Stop always releases the device and
// returns the recorded clip as a WAV encoded AudioBlob. LoadAudioFile builds
// the same AudioBlob from a file on disk for the upload flow.
package myaudio

import "github.com/phibia-app/phibia-go/internal/logger"

// GetLogger returns the myaudio logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("audio")
}
