package myaudio

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePCMToWAV_Header(t *testing.T) {
	t.Parallel()

	data, err := EncodePCMToWAV(sinePCM(4800, 3000), 48000)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))

	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(48000), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 4800)
	assert.Equal(t, 3000, buf.Data[0])
	assert.Equal(t, -3000, buf.Data[1])
}

func TestEncodePCMToWAV_InvalidRate(t *testing.T) {
	t.Parallel()

	_, err := EncodePCMToWAV(sinePCM(10, 1), 0)
	assert.Error(t, err)
}

func TestPCMDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, PCMDuration(96000, 48000))
	assert.Equal(t, 500*time.Millisecond, PCMDuration(16000, 16000))
	assert.Zero(t, PCMDuration(100, 0))
}

func TestByteSliceToInts_DropsOddByte(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{1, -1}, byteSliceToInts([]byte{0x01, 0x00, 0xff, 0xff, 0x7f}))
}

func TestSeekableBuffer_OverwriteInPlace(t *testing.T) {
	t.Parallel()

	var sb seekableBuffer
	_, _ = sb.Write([]byte("abcdef"))
	_, err := sb.Seek(2, 0)
	require.NoError(t, err)
	_, _ = sb.Write([]byte("XY"))
	assert.Equal(t, "abXYef", string(sb.Bytes()))

	_, err = sb.Seek(-1, 0)
	assert.Error(t, err)
}
