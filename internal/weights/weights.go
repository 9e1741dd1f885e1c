// Package weights loads and validates the fixed CNN's plaintext parameters:
// one convolution layer and two fully-connected layers. The network
// topology never varies at runtime (spec §4.4 Non-goals), so the loader's
// only job is to get known-shape tensors off disk and catch a corrupted or
// mismatched artifact before it reaches the inference engine.
package weights

import (
	"encoding/json"
	"fmt"
	"os"
)

// Fixed shapes of the emotion CNN (grounded on
// original_source/backend/app/fhe_core/fhe_cnn.py's FHEEmotionCNN):
// conv1: 16 output channels, 9x9 kernel, stride 6, over a 48x48 1-channel
// image, producing a 7x7 feature map per channel (49 positions).
const (
	ImageSize      = 48
	KernelSize     = 9
	Stride         = 6
	Channels       = 16
	WindowsPerSide = 7
	WindowsNB      = WindowsPerSide * WindowsPerSide // 49
	KernelTaps     = KernelSize * KernelSize         // 81

	FC1In  = Channels * WindowsNB // 784
	FC1Out = 128
	FC2In  = FC1Out
	FC2Out = 7
)

// Model holds the plaintext weights. Conv1Kernels[c] is the flattened
// (row-major, length 81) 9x9 kernel for output channel c. FC1Weight and
// FC2Weight are stored transposed ([in][out]) so that column j is exactly
// the diagonal-method input internal/inference needs for output neuron j.
type Model struct {
	Conv1Kernels [][]float64 `json:"conv1_kernels"`
	Conv1Bias    []float64   `json:"conv1_bias"`
	FC1Weight    [][]float64 `json:"fc1_weight"`
	FC1Bias      []float64   `json:"fc1_bias"`
	FC2Weight    [][]float64 `json:"fc2_weight"`
	FC2Bias      []float64   `json:"fc2_bias"`
}

// Load reads a Model from a JSON file at path and validates its shapes.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("weights: reading %s: %w", path, err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("weights: parsing %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("weights: %s: %w", path, err)
	}

	return &m, nil
}

// Validate checks every tensor against the fixed topology. It is called by
// Load and should also be called by anything constructing a Model in
// memory (e.g. test fixtures) before handing it to the inference engine.
func (m *Model) Validate() error {
	if len(m.Conv1Kernels) != Channels {
		return fmt.Errorf("conv1_kernels: expected %d channels, got %d", Channels, len(m.Conv1Kernels))
	}
	for c, k := range m.Conv1Kernels {
		if len(k) != KernelTaps {
			return fmt.Errorf("conv1_kernels[%d]: expected %d taps, got %d", c, KernelTaps, len(k))
		}
	}
	if len(m.Conv1Bias) != Channels {
		return fmt.Errorf("conv1_bias: expected %d entries, got %d", Channels, len(m.Conv1Bias))
	}

	if err := checkMatrix("fc1_weight", m.FC1Weight, FC1In, FC1Out); err != nil {
		return err
	}
	if len(m.FC1Bias) != FC1Out {
		return fmt.Errorf("fc1_bias: expected %d entries, got %d", FC1Out, len(m.FC1Bias))
	}

	if err := checkMatrix("fc2_weight", m.FC2Weight, FC2In, FC2Out); err != nil {
		return err
	}
	if len(m.FC2Bias) != FC2Out {
		return fmt.Errorf("fc2_bias: expected %d entries, got %d", FC2Out, len(m.FC2Bias))
	}

	return nil
}

func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("%s: expected %d rows, got %d", name, rows, len(m))
	}
	for i, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%s[%d]: expected %d columns, got %d", name, i, cols, len(row))
		}
	}
	return nil
}
