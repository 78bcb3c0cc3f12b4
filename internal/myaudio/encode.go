package myaudio

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// BitDepth of captured audio.
	BitDepth = 16
	// NumChannels of captured audio.
	NumChannels = 1
	// RecordingFilename is the upload filename for microphone captures.
	RecordingFilename = "recording.wav"
)

// seekableBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back
// to patch chunk sizes on Close.
type seekableBuffer struct {
	buf []byte
	pos int64
}

func (s *seekableBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		next = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	s.pos = next
	return next, nil
}

func (s *seekableBuffer) Bytes() []byte {
	return s.buf
}

// EncodePCMToWAV wraps 16-bit little endian mono PCM in a WAV container.
func EncodePCMToWAV(pcmData []byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	out := &seekableBuffer{}
	enc := wav.NewEncoder(out, sampleRate, BitDepth, NumChannels, 1)

	buf := &audio.IntBuffer{
		Data:           byteSliceToInts(pcmData),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: NumChannels},
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write to WAV encoder: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV data: %w", err)
	}

	return out.Bytes(), nil
}

// EncodeClip returns pcmData as a WAV AudioBlob named RecordingFilename.
func EncodeClip(pcmData []byte, sampleRate int) (AudioBlob, error) {
	data, err := EncodePCMToWAV(pcmData, sampleRate)
	if err != nil {
		return AudioBlob{}, err
	}
	return AudioBlob{
		Data:        data,
		Filename:    RecordingFilename,
		ContentType: "audio/wav",
		Duration:    PCMDuration(len(pcmData), sampleRate),
	}, nil
}

// PCMDuration returns the playback length of n bytes of 16-bit mono PCM.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / (BitDepth / 8) / NumChannels
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// byteSliceToInts converts 16-bit little endian samples to ints.
// A trailing odd byte is dropped.
func byteSliceToInts(pcmData []byte) []int {
	samples := make([]int, 0, len(pcmData)/2)
	for i := 0; i+1 < len(pcmData); i += 2 {
		samples = append(samples, int(int16(binary.LittleEndian.Uint16(pcmData[i:]))))
	}
	return samples
}
