package telemetry

import "fmt"

// AlertKind is a tagged variant of the threshold alerts spec §4.12 names.
// Alerts are computed on demand via CheckAlerts — never auto-logged.
type AlertKind int

const (
	HighLatency AlertKind = iota
	LowConfidence
	HighErrorRate
	HighMemoryUsage
	ProcessingStalled
)

func (k AlertKind) String() string {
	switch k {
	case HighLatency:
		return "high_latency"
	case LowConfidence:
		return "low_confidence"
	case HighErrorRate:
		return "high_error_rate"
	case HighMemoryUsage:
		return "high_memory_usage"
	case ProcessingStalled:
		return "processing_stalled"
	default:
		return "unknown"
	}
}

// Alert pairs a kind with the value that tripped it and a human message.
type Alert struct {
	Kind    AlertKind
	Value   float64
	Message string
}

// Thresholds configures when CheckAlerts fires each kind.
type Thresholds struct {
	MaxEndToEndLatencyUs int64
	MinConfidence        float64
	MaxErrorRatePer1k    float64
	MaxMemoryMB          int64
	StalledFrameCount    uint64 // frame count that hasn't advanced since last check
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxEndToEndLatencyUs: 2_000_000, // 2s
		MinConfidence:        0.4,
		MaxErrorRatePer1k:    50,
		MaxMemoryMB:          2048,
	}
}

// CheckAlerts evaluates the current metric values against thresholds and
// returns every alert currently tripped. It takes prior frame counts per
// stage (from the caller's last check) to detect a stalled pipeline.
func CheckAlerts(pipeline *PipelineMetrics, stt *SttPerformanceMetrics, th Thresholds, priorFrameCounts map[Stage]uint64) []Alert {
	var alerts []Alert

	if eteUs := stt.EndToEndUs.Load(); eteUs > th.MaxEndToEndLatencyUs {
		alerts = append(alerts, Alert{
			Kind: HighLatency, Value: float64(eteUs),
			Message: fmt.Sprintf("end-to-end latency %dus exceeds threshold %dus", eteUs, th.MaxEndToEndLatencyUs),
		})
	}

	if avg := stt.AverageConfidence(); stt.confidenceCount.Load() > 0 && avg < th.MinConfidence {
		alerts = append(alerts, Alert{
			Kind: LowConfidence, Value: avg,
			Message: fmt.Sprintf("average confidence %.2f below threshold %.2f", avg, th.MinConfidence),
		})
	}

	if rate := stt.ErrorRatePer1k(); rate > th.MaxErrorRatePer1k {
		alerts = append(alerts, Alert{
			Kind: HighErrorRate, Value: rate,
			Message: fmt.Sprintf("error rate %.1f/1k exceeds threshold %.1f/1k", rate, th.MaxErrorRatePer1k),
		})
	}

	if mem := stt.CurrentMemoryMB.Load(); mem > th.MaxMemoryMB {
		alerts = append(alerts, Alert{
			Kind: HighMemoryUsage, Value: float64(mem),
			Message: fmt.Sprintf("memory usage %dMB exceeds threshold %dMB", mem, th.MaxMemoryMB),
		})
	}

	if priorFrameCounts != nil {
		for _, s := range allStages {
			if !pipeline.Active(s) {
				continue
			}
			current := pipeline.FrameCount(s)
			if prior, ok := priorFrameCounts[s]; ok && current == prior {
				alerts = append(alerts, Alert{
					Kind: ProcessingStalled, Value: float64(current),
					Message: fmt.Sprintf("stage %q frame count has not advanced", s),
				})
			}
		}
	}

	return alerts
}

// SnapshotFrameCounts captures per-stage frame counts for use as
// priorFrameCounts on the next CheckAlerts call.
func SnapshotFrameCounts(pipeline *PipelineMetrics) map[Stage]uint64 {
	out := make(map[Stage]uint64, len(allStages))
	for _, s := range allStages {
		out[s] = pipeline.FrameCount(s)
	}
	return out
}
