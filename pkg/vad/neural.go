package vad

import (
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/coldvox/coldvox/pkg/frame"
)

// NeuralDetector runs a Silero-style streaming VAD ONNX model (spec §4.5
// "Neural (Silero-style): 512-sample window input, produces a probability
// p∈[0,1] per frame"). Wiring is grounded on
// other_examples/f71f8340_askidmobile-AIWisper's SileroVAD: same
// input/state/sr tensor triple, same [2,1,128] LSTM state shape, same
// 64-sample rolling context window at 16kHz.
type NeuralDetector struct {
	session *ort.DynamicAdvancedSession

	mu      sync.Mutex
	state   []float32
	context []float32
}

const (
	lstmStateSize = 2 * 1 * 128
	contextSize16k = 64
)

// NewNeuralDetector loads an ONNX model from modelPath. The caller must
// have already called ort.SetSharedLibraryPath and ort.InitializeEnvironment
// once per process (spec §9 "process-wide init is the caller's
// responsibility"); this mirrors initONNXRuntime()'s one-time-init guard in
// the grounding example, but nothing in this module performs that init, so
// NeuralDetector itself stays side-effect free at construction beyond
// session creation.
func NewNeuralDetector(modelPath string) (*NeuralDetector, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("vad: onnx session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("vad: onnx session for %q: %w", modelPath, err)
	}

	return &NeuralDetector{
		session: session,
		state:   make([]float32, lstmStateSize),
		context: make([]float32, contextSize16k),
	}, nil
}

func (d *NeuralDetector) Name() string { return "silero" }

// Close releases the ONNX session. Model load failure is fatal per spec
// §4.5; once loaded, Close should be called on unload (C7/C13 GC paths).
func (d *NeuralDetector) Close() error {
	return d.session.Destroy()
}

// Reset clears the LSTM state and context window, e.g. on capture restart.
func (d *NeuralDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.state {
		d.state[i] = 0
	}
	for i := range d.context {
		d.context[i] = 0
	}
}

func (d *NeuralDetector) Score(f frame.AudioFrame) (float64, float64, error) {
	samples := make([]float32, len(f.Samples))
	var sumSq float64
	for i, s := range f.Samples {
		v := float32(s) / 32768.0
		samples[i] = v
		sumSq += float64(v) * float64(v)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	inputData := make([]float32, len(d.context)+len(samples))
	copy(inputData[:len(d.context)], d.context)
	copy(inputData[len(d.context):], samples)
	copy(d.context, samples[len(samples)-len(d.context):])

	inputShape := ort.NewShape(1, int64(len(inputData)))
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return 0, 0, fmt.Errorf("vad: input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateShape := ort.NewShape(2, 1, 128)
	stateTensor, err := ort.NewTensor(stateShape, d.state)
	if err != nil {
		return 0, 0, fmt.Errorf("vad: state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(frame.TargetSampleRate)})
	if err != nil {
		return 0, 0, fmt.Errorf("vad: sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := d.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, 0, fmt.Errorf("vad: onnx inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, 0, fmt.Errorf("vad: unexpected output tensor type")
	}
	outData := outTensor.GetData()

	stateNTensor, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return 0, 0, fmt.Errorf("vad: unexpected state tensor type")
	}
	copy(d.state, stateNTensor.GetData())

	var p float64
	if len(outData) > 0 {
		p = float64(outData[0])
	}

	rms := 0.0
	if len(f.Samples) > 0 {
		rms = math.Sqrt(sumSq / float64(len(f.Samples)))
	}
	energyDB := 20 * math.Log10(rms+1e-12)

	return p, energyDB, nil
}
