package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes PipelineMetrics and SttPerformanceMetrics as a
// prometheus.Collector, scraped via the standard promhttp handler. No pack
// example calls prometheus/client_golang directly (only the otel-bridged
// exporter in MrWong99-glyphoxa and manifest-only declarations elsewhere),
// so this is built against the library's own Collector contract
// (Describe/Collect, NewDesc, MustNewConstMetric) — the same stance taken
// for pkg/inject/backends' dbus and clipboard usage.
type Collector struct {
	pipeline *PipelineMetrics
	stt      *SttPerformanceMetrics

	rms          *prometheus.Desc
	peak         *prometheus.Desc
	audioLevelDB *prometheus.Desc
	isSpeaking   *prometheus.Desc
	speechCount  *prometheus.Desc
	stageFPS     *prometheus.Desc
	stageFill    *prometheus.Desc
	stageActive  *prometheus.Desc
	stageFrames  *prometheus.Desc

	sttLatency    *prometheus.Desc
	sttConfidence *prometheus.Desc
	sttCounts     *prometheus.Desc
	sttMemory     *prometheus.Desc
	sttErrorRate  *prometheus.Desc
}

func NewCollector(pipeline *PipelineMetrics, stt *SttPerformanceMetrics) *Collector {
	const ns = "coldvox"
	return &Collector{
		pipeline: pipeline,
		stt:      stt,

		rms:          prometheus.NewDesc(ns+"_audio_rms", "Current input RMS level.", nil, nil),
		peak:         prometheus.NewDesc(ns+"_audio_peak", "Current input peak sample value.", nil, nil),
		audioLevelDB: prometheus.NewDesc(ns+"_audio_level_db", "Current input level in dB.", nil, nil),
		isSpeaking:   prometheus.NewDesc(ns+"_is_speaking", "1 if VAD currently reports speech.", nil, nil),
		speechCount:  prometheus.NewDesc(ns+"_speech_segments_total", "Total speech segments detected.", nil, nil),
		stageFPS:     prometheus.NewDesc(ns+"_stage_fps", "Per-stage frames per second.", []string{"stage"}, nil),
		stageFill:    prometheus.NewDesc(ns+"_stage_buffer_fill_ratio", "Per-stage buffer fill fraction.", []string{"stage"}, nil),
		stageActive:  prometheus.NewDesc(ns+"_stage_active", "1 if the stage is currently active.", []string{"stage"}, nil),
		stageFrames:  prometheus.NewDesc(ns+"_stage_frames_total", "Per-stage cumulative frame count.", []string{"stage"}, nil),

		sttLatency:    prometheus.NewDesc(ns+"_stt_latency_us", "STT latency breakdown in microseconds.", []string{"phase"}, nil),
		sttConfidence: prometheus.NewDesc(ns+"_stt_confidence_avg", "Average STT confidence.", nil, nil),
		sttCounts:     prometheus.NewDesc(ns+"_stt_results_total", "STT result counts by kind.", []string{"kind"}, nil),
		sttMemory:     prometheus.NewDesc(ns+"_stt_memory_mb", "STT plugin memory usage in MB.", []string{"kind"}, nil),
		sttErrorRate:  prometheus.NewDesc(ns+"_stt_error_rate_per_1k", "STT error rate per 1000 requests.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rms
	ch <- c.peak
	ch <- c.audioLevelDB
	ch <- c.isSpeaking
	ch <- c.speechCount
	ch <- c.stageFPS
	ch <- c.stageFill
	ch <- c.stageActive
	ch <- c.stageFrames
	ch <- c.sttLatency
	ch <- c.sttConfidence
	ch <- c.sttCounts
	ch <- c.sttMemory
	ch <- c.sttErrorRate
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	p, s := c.pipeline, c.stt

	ch <- prometheus.MustNewConstMetric(c.rms, prometheus.GaugeValue, p.RMS())
	ch <- prometheus.MustNewConstMetric(c.peak, prometheus.GaugeValue, float64(p.Peak()))
	ch <- prometheus.MustNewConstMetric(c.audioLevelDB, prometheus.GaugeValue, p.AudioLevelDB())
	ch <- prometheus.MustNewConstMetric(c.isSpeaking, prometheus.GaugeValue, boolToFloat(p.IsSpeaking()))
	ch <- prometheus.MustNewConstMetric(c.speechCount, prometheus.CounterValue, float64(p.SpeechSegmentsCount()))

	for _, stage := range allStages {
		label := string(stage)
		ch <- prometheus.MustNewConstMetric(c.stageFPS, prometheus.GaugeValue, p.FPS(stage), label)
		ch <- prometheus.MustNewConstMetric(c.stageFill, prometheus.GaugeValue, p.BufferFill(stage), label)
		ch <- prometheus.MustNewConstMetric(c.stageActive, prometheus.GaugeValue, boolToFloat(p.Active(stage)), label)
		ch <- prometheus.MustNewConstMetric(c.stageFrames, prometheus.CounterValue, float64(p.FrameCount(stage)), label)
	}

	ch <- prometheus.MustNewConstMetric(c.sttLatency, prometheus.GaugeValue, float64(s.EndToEndUs.Load()), "end_to_end")
	ch <- prometheus.MustNewConstMetric(c.sttLatency, prometheus.GaugeValue, float64(s.EngineUs.Load()), "engine")
	ch <- prometheus.MustNewConstMetric(c.sttLatency, prometheus.GaugeValue, float64(s.PreprocessingUs.Load()), "preprocessing")
	ch <- prometheus.MustNewConstMetric(c.sttLatency, prometheus.GaugeValue, float64(s.DeliveryUs.Load()), "delivery")

	ch <- prometheus.MustNewConstMetric(c.sttConfidence, prometheus.GaugeValue, s.AverageConfidence())

	ch <- prometheus.MustNewConstMetric(c.sttCounts, prometheus.CounterValue, float64(s.SuccessCount.Load()), "success")
	ch <- prometheus.MustNewConstMetric(c.sttCounts, prometheus.CounterValue, float64(s.FailureCount.Load()), "failure")
	ch <- prometheus.MustNewConstMetric(c.sttCounts, prometheus.CounterValue, float64(s.PartialCount.Load()), "partial")
	ch <- prometheus.MustNewConstMetric(c.sttCounts, prometheus.CounterValue, float64(s.FinalCount.Load()), "final")

	ch <- prometheus.MustNewConstMetric(c.sttMemory, prometheus.GaugeValue, float64(s.CurrentMemoryMB.Load()), "current")
	ch <- prometheus.MustNewConstMetric(c.sttMemory, prometheus.GaugeValue, float64(s.PeakMemoryMB.Load()), "peak")

	ch <- prometheus.MustNewConstMetric(c.sttErrorRate, prometheus.GaugeValue, s.ErrorRatePer1k())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
