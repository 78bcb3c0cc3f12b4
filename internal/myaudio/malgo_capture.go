package myaudio

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// captureSource holds information about an audio capture source.
type captureSource struct {
	Name    string
	ID      string
	Pointer unsafe.Pointer
}

// MalgoCapturer records from a local input device through miniaudio.
type MalgoCapturer struct {
	source      string
	sampleRate  int
	maxDuration time.Duration
	debug       bool
}

// NewMalgoCapturer returns a Capturer configured from the audio settings.
func NewMalgoCapturer(settings *conf.Settings) *MalgoCapturer {
	return &MalgoCapturer{
		source:      settings.Audio.Source,
		sampleRate:  settings.Audio.SampleRate,
		maxDuration: settings.Audio.MaxDuration,
		debug:       settings.Debug,
	}
}

// StartCapture opens the configured device and starts recording S16LE mono.
func (m *MalgoCapturer) StartCapture(ctx context.Context) (CaptureHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := GetLogger()

	malgoCtx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, func(message string) {
		if m.debug {
			log.Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
		}
	})
	if err != nil {
		return nil, classifyDeviceError("init_context", err)
	}

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		uninitContext(malgoCtx)
		return nil, classifyDeviceError("list_devices", err)
	}

	source, err := selectCaptureSource(infos, m.source)
	if err != nil {
		uninitContext(malgoCtx)
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = NumChannels
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if source.Pointer != nil {
		deviceConfig.Capture.DeviceID = source.Pointer
	}

	var recorder *clipRecorder
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSamples []byte, _ uint32) {
			recorder.write(pSamples)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		uninitContext(malgoCtx)
		return nil, classifyDeviceError("init_device", err)
	}

	recorder = newClipRecorder(m.sampleRate, m.maxDuration, func() error {
		stopErr := device.Stop()
		device.Uninit()
		uninitContext(malgoCtx)
		return stopErr
	})

	if err := device.Start(); err != nil {
		device.Uninit()
		uninitContext(malgoCtx)
		return nil, classifyDeviceError("start_device", err)
	}

	log.Info("capture started",
		logger.String("device", source.Name),
		logger.Int("sample_rate", m.sampleRate))

	return recorder, nil
}

// ListDevices enumerates capture sources.
func ListDevices() ([]AudioDeviceInfo, error) {
	ctx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, classifyDeviceError("init_context", err)
	}
	defer uninitContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, classifyDeviceError("list_devices", err)
	}

	devices := make([]AudioDeviceInfo, 0, len(infos))
	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			GetLogger().Debug("failed to decode device id", logger.Int("index", i), logger.Error(err))
			decodedID = infos[i].ID.String()
		}
		devices = append(devices, AudioDeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodedID,
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// AudioDeviceInfo describes one capture device.
type AudioDeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	IsDefault bool   `json:"is_default"`
}

// selectCaptureSource picks the configured device, or the system default
// when audioSource is empty.
func selectCaptureSource(infos []malgo.DeviceInfo, audioSource string) (captureSource, error) {
	if len(infos) == 0 {
		return captureSource{}, classifyDeviceError("select_device", fmt.Errorf("no device available"))
	}

	if audioSource == "" || audioSource == "sysdefault" {
		for i := range infos {
			if infos[i].IsDefault == 1 {
				return sourceFromInfo(&infos[i]), nil
			}
		}
		// nil pointer lets miniaudio choose
		return captureSource{Name: "default"}, nil
	}

	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			continue
		}
		if decodedID == audioSource || strings.Contains(infos[i].Name(), audioSource) {
			return sourceFromInfo(&infos[i]), nil
		}
	}

	return captureSource{}, classifyDeviceError("select_device",
		fmt.Errorf("device %q does not exist", audioSource))
}

func sourceFromInfo(info *malgo.DeviceInfo) captureSource {
	decodedID, err := hexToASCII(info.ID.String())
	if err != nil {
		decodedID = info.ID.String()
	}
	return captureSource{
		Name:    info.Name(),
		ID:      decodedID,
		Pointer: info.ID.Pointer(),
	}
}

// platformBackends prefers the native backend of each OS.
func platformBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func uninitContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		GetLogger().Debug("failed to uninit audio context", logger.Error(err))
	}
	ctx.Free()
}

// hexToASCII converts a hexadecimal string to an ASCII string.
func hexToASCII(hexStr string) (string, error) {
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(decoded), "\x00"), nil
}
