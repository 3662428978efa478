// Package whisper implements stt.Plugin against a local whisper.cpp
// whisper-server instance's HTTP /inference endpoint — whisper.cpp is a
// batch engine, so ProcessAudio only buffers; Finalize performs the one
// inference call and returns the Final (spec §4.7's batch-plugin shape).
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/coldvox/coldvox/pkg/audio"
	"github.com/coldvox/coldvox/pkg/stt"
)

const defaultTimeout = 30 * time.Second

type Plugin struct {
	serverURL  string
	model      string
	httpClient *http.Client

	sampleRate int
	buf        []int16
	finalized  bool
}

func New(serverURL string) *Plugin {
	return &Plugin{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		sampleRate: 16000,
	}
}

// SetModel sets the model identifier forwarded to the whisper-server
// (e.g. "base.en"); leave unset to use whatever model the server was
// started with.
func (p *Plugin) SetModel(model string) {
	p.model = model
}

func (p *Plugin) Info() stt.PluginInfo {
	return stt.PluginInfo{ID: "whisper", LocalOnly: true, Languages: []string{"en"}}
}

func (p *Plugin) Capabilities() stt.PluginCapabilities {
	return stt.PluginCapabilities{Batch: true, Confidence: false}
}

// IsAvailable probes the server's root endpoint within a short timeout; it
// never blocks the registry for longer than that.
func (p *Plugin) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (p *Plugin) Initialize(ctx context.Context, cfg stt.TranscriptionConfig) error {
	if cfg.ServerURL != "" {
		p.serverURL = cfg.ServerURL
	}
	if cfg.SampleRate > 0 {
		p.sampleRate = cfg.SampleRate
	}
	return nil
}

// ProcessAudio buffers samples; whisper.cpp has no true streaming partials
// (spec §4.7's batch path), so it always returns (nil, nil).
func (p *Plugin) ProcessAudio(ctx context.Context, samples []int16) (*stt.Event, error) {
	p.buf = append(p.buf, samples...)
	return nil, nil
}

func (p *Plugin) Finalize(ctx context.Context) (*stt.Event, error) {
	if p.finalized {
		return nil, nil
	}
	p.finalized = true

	text, err := p.infer(ctx, p.buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stt.ErrTranscriptionFailed, err)
	}
	return &stt.Event{Type: stt.EventFinal, Text: text}, nil
}

func (p *Plugin) Reset() {
	p.buf = p.buf[:0]
	p.finalized = false
}

func (p *Plugin) Unload() {
	p.buf = nil
}

// infer encodes buffered i16 samples as a WAV file (via pkg/audio) and
// POSTs it to the whisper-server /inference endpoint as multipart form
// data, grounded on the glyphoxa whisper provider's infer() shape.
func (p *Plugin) infer(ctx context.Context, samples []int16) (string, error) {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	wav := audio.NewWavBuffer(pcm, p.sampleRate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return result.Text, nil
}
