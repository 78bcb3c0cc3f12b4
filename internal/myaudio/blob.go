package myaudio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/tphakala/flac"

	"github.com/phibia-app/phibia-go/internal/errors"
)

// AudioBlob is an encoded audio clip ready for upload.
type AudioBlob struct {
	Data        []byte
	Filename    string
	ContentType string
	Duration    time.Duration // zero when the container does not expose it cheaply
}

// Size returns the encoded size in bytes.
func (b AudioBlob) Size() int {
	return len(b.Data)
}

// IsEmpty reports whether the blob carries no audio.
func (b AudioBlob) IsEmpty() bool {
	return len(b.Data) == 0
}

// contentTypes lists the accepted upload extensions.
var contentTypes = map[string]string{
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
}

// ContentTypeFor returns the MIME type for an audio filename, or "" when the
// extension is not accepted.
func ContentTypeFor(filename string) string {
	return contentTypes[strings.ToLower(filepath.Ext(filename))]
}

// SupportedExtensions returns the accepted upload extensions.
func SupportedExtensions() []string {
	return []string{".wav", ".flac", ".mp3", ".ogg", ".webm", ".m4a"}
}

type loadOptions struct {
	maxSize int64
}

// LoadOption customises LoadAudioFile and NewAudioBlob.
type LoadOption func(*loadOptions)

// WithMaxSize rejects files larger than maxBytes. Zero disables the check.
func WithMaxSize(maxBytes int64) LoadOption {
	return func(o *loadOptions) {
		o.maxSize = maxBytes
	}
}

// LoadAudioFile reads an audio file from disk for upload.
// WAV and FLAC headers are validated, other formats are accepted by extension.
func LoadAudioFile(path string, opts ...LoadOption) (AudioBlob, error) {
	options := applyLoadOptions(opts)

	if ContentTypeFor(path) == "" {
		return AudioBlob{}, unsupportedTypeError(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return AudioBlob{}, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "load_audio_file").
			FileContext(path, 0).
			Build()
	}
	if err := checkSize(path, info.Size(), options.maxSize); err != nil {
		return AudioBlob{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return AudioBlob{}, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "load_audio_file").
			FileContext(path, info.Size()).
			Build()
	}

	return NewAudioBlob(filepath.Base(path), data, opts...)
}

// NewAudioBlob validates in-memory audio data the same way LoadAudioFile does.
func NewAudioBlob(filename string, data []byte, opts ...LoadOption) (AudioBlob, error) {
	options := applyLoadOptions(opts)

	contentType := ContentTypeFor(filename)
	if contentType == "" {
		return AudioBlob{}, unsupportedTypeError(filename)
	}
	if err := checkSize(filename, int64(len(data)), options.maxSize); err != nil {
		return AudioBlob{}, err
	}

	blob := AudioBlob{
		Data:        data,
		Filename:    filepath.Base(filename),
		ContentType: contentType,
	}

	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		blob.Duration, err = validateWAV(data)
	case ".flac":
		blob.Duration, err = validateFLAC(data)
	}
	if err != nil {
		return AudioBlob{}, errors.New(fmt.Errorf("%w: %w", ErrAudioFileInvalid, err)).
			Component("myaudio").
			Category(errors.CategoryFileParsing).
			Context("operation", "validate_audio_header").
			FileContext(filename, int64(len(data))).
			Build()
	}

	return blob, nil
}

func applyLoadOptions(opts []LoadOption) loadOptions {
	var options loadOptions
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func checkSize(name string, size, limit int64) error {
	if size == 0 {
		return errors.New(ErrAudioFileEmpty).
			Component("myaudio").
			Category(errors.CategoryValidation).
			FileContext(name, size).
			Build()
	}
	if limit > 0 && size > limit {
		return errors.New(fmt.Errorf("%w: %d bytes, limit %d", ErrAudioFileTooLarge, size, limit)).
			Component("myaudio").
			Category(errors.CategoryLimit).
			FileContext(name, size).
			Build()
	}
	return nil
}

func unsupportedTypeError(name string) error {
	return errors.New(fmt.Errorf("%w: %q", ErrUnsupportedAudioType, filepath.Ext(name))).
		Component("myaudio").
		Category(errors.CategoryValidation).
		Context("supported", strings.Join(SupportedExtensions(), ",")).
		Build()
}

// validateWAV checks the RIFF/WAVE header and returns the clip duration.
func validateWAV(data []byte) (time.Duration, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return 0, fmt.Errorf("invalid WAV file format")
	}
	if decoder.NumChans == 0 || decoder.SampleRate == 0 {
		return 0, fmt.Errorf("WAV header has no audio format")
	}

	// streamed WAVs may lack a usable data chunk size
	if err := decoder.FwdToPCM(); err != nil {
		return 0, nil
	}
	bytesPerSecond := int64(decoder.SampleRate) * int64(decoder.NumChans) * int64(decoder.BitDepth) / 8
	pcmSize := int64(decoder.PCMSize)
	if bytesPerSecond <= 0 || pcmSize <= 0 || pcmSize > int64(len(data)) {
		return 0, nil
	}
	return time.Duration(pcmSize) * time.Second / time.Duration(bytesPerSecond), nil
}

// validateFLAC parses the STREAMINFO block and returns the clip duration.
func validateFLAC(data []byte) (time.Duration, error) {
	decoder, err := flac.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if decoder.SampleRate <= 0 {
		return 0, fmt.Errorf("FLAC stream has invalid sample rate %d", decoder.SampleRate)
	}
	if decoder.TotalSamples == 0 {
		return 0, nil
	}
	return time.Duration(float64(decoder.TotalSamples) / float64(decoder.SampleRate) * float64(time.Second)), nil
}
