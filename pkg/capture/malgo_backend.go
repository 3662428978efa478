package capture

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/coldvox/coldvox/pkg/device"
)

// MalgoBackend wires the Backend interface to github.com/gen2brain/malgo,
// following the InitContext/Devices/InitDevice pattern used throughout the
// examples pack's audio capture code.
type MalgoBackend struct {
	ctx *malgo.AllocatedContext
}

func NewMalgoBackend() (*MalgoBackend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {})
	if err != nil {
		return nil, fmt.Errorf("capture: malgo.InitContext: %w", err)
	}
	return &MalgoBackend{ctx: ctx}, nil
}

func (b *MalgoBackend) Close() {
	b.ctx.Uninit()
	b.ctx.Free()
}

func (b *MalgoBackend) EnumerateInputs() ([]device.Info, error) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("capture: enumerating capture devices: %w", err)
	}
	out := make([]device.Info, 0, len(infos))
	for _, info := range infos {
		out = append(out, device.Info{
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return out, nil
}

func (b *MalgoBackend) DefaultInputName() (string, bool) {
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return "", false
	}
	for _, info := range infos {
		if info.IsDefault != 0 {
			return info.Name(), true
		}
	}
	return "", false
}

const (
	captureSampleRate  = 16000
	capturePeriodSize  = 512
	captureChannels    = 1
)

// malgoStream adapts malgo.Device to the capture.Stream interface.
type malgoStream struct {
	device *malgo.Device
}

func (s *malgoStream) Start() error { return s.device.Start() }
func (s *malgoStream) Stop() error  { return s.device.Stop() }
func (s *malgoStream) Close() error { s.device.Uninit(); return nil }

// Open resolves name to a malgo device ID (empty name means "let malgo pick
// the OS default") and opens a capture-only device configured for 16kHz
// mono i16, the pipeline's native frame format (spec §4.1/§4.3).
func (b *MalgoBackend) Open(ctx context.Context, name string, onSamples func(SampleFormat, []byte, DeviceConfig)) (Stream, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = captureChannels
	deviceConfig.SampleRate = captureSampleRate
	deviceConfig.PeriodSizeInFrames = capturePeriodSize
	deviceConfig.Alsa.NoMMap = 1

	if name != "" {
		infos, err := b.ctx.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("capture: enumerating capture devices: %w", err)
		}
		for i := range infos {
			if infos[i].Name() == name {
				deviceConfig.Capture.DeviceID = infos[i].ID.Pointer()
				break
			}
		}
	}

	cfg := DeviceConfig{SampleRate: captureSampleRate, Channels: captureChannels}

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			onSamples(FormatI16, inputSamples, cfg)
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("capture: malgo.InitDevice(%q): %w", name, err)
	}
	return &malgoStream{device: dev}, nil
}
