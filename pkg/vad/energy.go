package vad

import (
	"math"

	"github.com/coldvox/coldvox/pkg/frame"
)

// EnergyDetector is the energy-based fallback from spec §4.5 "Energy
// (level3)", generalizing the teacher's RMSVAD.calculateRMS
// (pkg/orchestrator/vad.go) into the Detector interface: it maps RMS onto
// a [0,1] probability with a logistic curve that crosses 0.5 at a fixed
// RMS of 0.05, so the same hysteresis Processor (and its Threshold) works
// for both energy and neural detectors. Only RMS is used; the frame's
// peak level is not.
type EnergyDetector struct{}

func NewEnergyDetector() *EnergyDetector { return &EnergyDetector{} }

func (d *EnergyDetector) Name() string { return "energy" }

func (d *EnergyDetector) Score(f frame.AudioFrame) (float64, float64, error) {
	var sum float64
	for _, s := range f.Samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(f.Samples)))

	energyDB := 20 * math.Log10(rms+1e-12)

	// Fold RMS into a pseudo-probability: a logistic curve centered at
	// rms==0.05 (~ -26dBFS), a reasonable "quiet speech" floor, so the
	// shared hysteresis threshold of 0.5 behaves sensibly for energy mode
	// too.
	const center = 0.05
	const steepness = 60.0
	p := 1 / (1 + math.Exp(-steepness*(rms-center)))

	return p, energyDB, nil
}
