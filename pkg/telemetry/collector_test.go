package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorRegistersWithoutError(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(NewPipelineMetrics(), NewSttPerformanceMetrics())
	if err := reg.Register(c); err != nil {
		t.Fatalf("unexpected registration error: %v", err)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	if len(metrics) == 0 {
		t.Fatal("expected at least one metric family")
	}
}

func TestCollectorReflectsLiveValues(t *testing.T) {
	p := NewPipelineMetrics()
	p.SetRMS(0.42)
	s := NewSttPerformanceMetrics()
	c := NewCollector(p, s)

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found bool
	for _, fam := range families {
		if fam.GetName() == "coldvox_audio_rms" {
			found = true
			if got := fam.Metric[0].GetGauge().GetValue(); got != 0.42 {
				t.Fatalf("expected rms 0.42, got %v", got)
			}
		}
	}
	if !found {
		t.Fatal("expected coldvox_audio_rms metric family")
	}
}
