// Package telemetry holds the pipeline's lock-free counters (spec §4.12):
// per-stage pipeline metrics, STT performance metrics, a bounded latency
// history with trend detection, and on-demand threshold alerts.
package telemetry

import "sync/atomic"

// Stage names the pipeline stages that report FPS/buffer-fill/frame counts.
type Stage string

const (
	StageCapture    Stage = "capture"
	StageChunker    Stage = "chunker"
	StageVAD        Stage = "vad"
	StageSession    Stage = "session"
	StageSTT        Stage = "stt"
	StageDictation  Stage = "dictation"
	StageInjection  Stage = "injection"
)

var allStages = []Stage{StageCapture, StageChunker, StageVAD, StageSession, StageSTT, StageDictation, StageInjection}

// stageCounters holds one stage's atomic counters.
type stageCounters struct {
	fpsX1000     atomic.Int64 // frames/sec * 1000, avoids float atomics
	bufferFillPM atomic.Int64 // buffer fill, parts-per-thousand (0-1000)
	activeBit    atomic.Bool
	frameCount   atomic.Uint64
}

// PipelineMetrics is the spec §4.12 "PipelineMetrics" counter bundle.
// Every field is independently atomic; snapshots are not cross-field
// consistent (spec: "no attempt at cross-field snapshot consistency").
type PipelineMetrics struct {
	currentRMSx1000    atomic.Int64
	currentPeak        atomic.Int32
	audioLevelDBx10    atomic.Int32
	isSpeaking         atomic.Bool
	speechSegmentsCount atomic.Uint64

	stages map[Stage]*stageCounters
}

func NewPipelineMetrics() *PipelineMetrics {
	m := &PipelineMetrics{stages: make(map[Stage]*stageCounters, len(allStages))}
	for _, s := range allStages {
		m.stages[s] = &stageCounters{}
	}
	return m
}

func (m *PipelineMetrics) stage(s Stage) *stageCounters {
	c, ok := m.stages[s]
	if !ok {
		// Unknown stages are tolerated as a fresh, unshared counter set
		// rather than panicking — callers may name stages this package
		// doesn't enumerate without crashing the pipeline.
		c = &stageCounters{}
		m.stages[s] = c
	}
	return c
}

func (m *PipelineMetrics) SetRMS(rms float64)   { m.currentRMSx1000.Store(int64(rms * 1000)) }
func (m *PipelineMetrics) RMS() float64          { return float64(m.currentRMSx1000.Load()) / 1000 }
func (m *PipelineMetrics) SetPeak(peak int32)    { m.currentPeak.Store(peak) }
func (m *PipelineMetrics) Peak() int32           { return m.currentPeak.Load() }
func (m *PipelineMetrics) SetAudioLevelDB(db float64) {
	m.audioLevelDBx10.Store(int32(db * 10))
}
func (m *PipelineMetrics) AudioLevelDB() float64 { return float64(m.audioLevelDBx10.Load()) / 10 }

func (m *PipelineMetrics) SetSpeaking(speaking bool) {
	wasSpeaking := m.isSpeaking.Swap(speaking)
	if speaking && !wasSpeaking {
		m.speechSegmentsCount.Add(1)
	}
}
func (m *PipelineMetrics) IsSpeaking() bool            { return m.isSpeaking.Load() }
func (m *PipelineMetrics) SpeechSegmentsCount() uint64 { return m.speechSegmentsCount.Load() }

func (m *PipelineMetrics) SetFPS(s Stage, fps float64) { m.stage(s).fpsX1000.Store(int64(fps * 1000)) }
func (m *PipelineMetrics) FPS(s Stage) float64          { return float64(m.stage(s).fpsX1000.Load()) / 1000 }

func (m *PipelineMetrics) SetBufferFill(s Stage, fraction float64) {
	m.stage(s).bufferFillPM.Store(int64(fraction * 1000))
}
func (m *PipelineMetrics) BufferFill(s Stage) float64 {
	return float64(m.stage(s).bufferFillPM.Load()) / 1000
}

func (m *PipelineMetrics) SetActive(s Stage, active bool) { m.stage(s).activeBit.Store(active) }
func (m *PipelineMetrics) Active(s Stage) bool            { return m.stage(s).activeBit.Load() }

func (m *PipelineMetrics) IncFrameCount(s Stage) uint64 { return m.stage(s).frameCount.Add(1) }
func (m *PipelineMetrics) FrameCount(s Stage) uint64    { return m.stage(s).frameCount.Load() }

// Reset zeroes every counter (spec: "all counters are reset on reset_metrics()").
func (m *PipelineMetrics) Reset() {
	m.currentRMSx1000.Store(0)
	m.currentPeak.Store(0)
	m.audioLevelDBx10.Store(0)
	m.isSpeaking.Store(false)
	m.speechSegmentsCount.Store(0)
	for _, c := range m.stages {
		c.fpsX1000.Store(0)
		c.bufferFillPM.Store(0)
		c.activeBit.Store(false)
		c.frameCount.Store(0)
	}
}

// SttPerformanceMetrics is the spec §4.12 "SttPerformanceMetrics" bundle.
type SttPerformanceMetrics struct {
	// Latency, in microseconds.
	EndToEndUs     atomic.Int64
	EngineUs       atomic.Int64
	PreprocessingUs atomic.Int64
	DeliveryUs     atomic.Int64

	// Accuracy.
	confidenceSumX1000 atomic.Int64
	confidenceCount    atomic.Uint64
	SuccessCount       atomic.Uint64
	FailureCount       atomic.Uint64
	PartialCount       atomic.Uint64
	FinalCount         atomic.Uint64

	// Resources.
	CurrentMemoryMB atomic.Int64
	PeakMemoryMB    atomic.Int64
	bufferUtilPM    atomic.Int64
	ActiveThreads   atomic.Int32

	// Operational.
	requestsPerSecX1000 atomic.Int64
	errorRatePer1kX1000 atomic.Int64
	ModelSwitches       atomic.Uint64
	FallbackUsageCount  atomic.Uint64
}

func NewSttPerformanceMetrics() *SttPerformanceMetrics { return &SttPerformanceMetrics{} }

func (m *SttPerformanceMetrics) RecordConfidence(c float64) {
	m.confidenceSumX1000.Add(int64(c * 1000))
	m.confidenceCount.Add(1)
}

func (m *SttPerformanceMetrics) AverageConfidence() float64 {
	n := m.confidenceCount.Load()
	if n == 0 {
		return 0
	}
	return float64(m.confidenceSumX1000.Load()) / 1000 / float64(n)
}

func (m *SttPerformanceMetrics) SetBufferUtil(fraction float64) {
	m.bufferUtilPM.Store(int64(fraction * 1000))
}
func (m *SttPerformanceMetrics) BufferUtil() float64 { return float64(m.bufferUtilPM.Load()) / 1000 }

func (m *SttPerformanceMetrics) SetRequestsPerSec(v float64) {
	m.requestsPerSecX1000.Store(int64(v * 1000))
}
func (m *SttPerformanceMetrics) RequestsPerSec() float64 {
	return float64(m.requestsPerSecX1000.Load()) / 1000
}

func (m *SttPerformanceMetrics) SetErrorRatePer1k(v float64) {
	m.errorRatePer1kX1000.Store(int64(v * 1000))
}
func (m *SttPerformanceMetrics) ErrorRatePer1k() float64 {
	return float64(m.errorRatePer1kX1000.Load()) / 1000
}

func (m *SttPerformanceMetrics) Reset() {
	m.EndToEndUs.Store(0)
	m.EngineUs.Store(0)
	m.PreprocessingUs.Store(0)
	m.DeliveryUs.Store(0)
	m.confidenceSumX1000.Store(0)
	m.confidenceCount.Store(0)
	m.SuccessCount.Store(0)
	m.FailureCount.Store(0)
	m.PartialCount.Store(0)
	m.FinalCount.Store(0)
	m.CurrentMemoryMB.Store(0)
	m.PeakMemoryMB.Store(0)
	m.bufferUtilPM.Store(0)
	m.ActiveThreads.Store(0)
	m.requestsPerSecX1000.Store(0)
	m.errorRatePer1kX1000.Store(0)
	m.ModelSwitches.Store(0)
	m.FallbackUsageCount.Store(0)
}
