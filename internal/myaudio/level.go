package myaudio

import (
	"encoding/binary"
	"math"
)

// AudioLevelData is the input meter reading for one block of samples.
type AudioLevelData struct {
	Level    int  `json:"level"`    // 0-100
	Clipping bool `json:"clipping"` // a sample hit full scale
}

// AudioLevel computes the RMS level of 16-bit little endian samples scaled to 0-100.
// The scale covers -60 dBFS to -10 dBFS so quiet field recordings still move the meter.
func AudioLevel(samples []byte) AudioLevelData {
	sampleCount := len(samples) / 2
	if sampleCount == 0 {
		return AudioLevelData{}
	}

	var sum float64
	clipping := false
	for i := 0; i+1 < len(samples); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(samples[i:]))
		if sample == math.MaxInt16 || sample == math.MinInt16 {
			clipping = true
		}
		v := float64(sample)
		sum += v * v
	}

	rms := math.Sqrt(sum / float64(sampleCount))
	if rms == 0 {
		return AudioLevelData{Clipping: clipping}
	}

	db := 20 * math.Log10(rms/32768.0)
	scaled := (db + 60) * (100.0 / 50.0)
	if clipping {
		scaled = math.Max(scaled, 95)
	}
	scaled = math.Max(0, math.Min(100, scaled))

	return AudioLevelData{Level: int(scaled), Clipping: clipping}
}
