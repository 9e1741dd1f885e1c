// Package integration exercises the full client-encrypt / server-evaluate
// / client-decrypt path against an in-process CKKS context, the way
// backend/test/*_test.go in the teacher drives the credit-scoring pipeline
// end to end rather than unit-by-unit.
package integration

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/z3rotig4r/emotion-fhe/internal/codec"
	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/inference"
	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

func randomModel(seed int64) *weights.Model {
	r := rand.New(rand.NewSource(seed))
	m := &weights.Model{
		Conv1Kernels: make([][]float64, weights.Channels),
		Conv1Bias:    make([]float64, weights.Channels),
		FC1Weight:    make([][]float64, weights.FC1In),
		FC1Bias:      make([]float64, weights.FC1Out),
		FC2Weight:    make([][]float64, weights.FC2In),
		FC2Bias:      make([]float64, weights.FC2Out),
	}
	small := func() float64 { return (r.Float64() - 0.5) * 0.05 }
	for c := range m.Conv1Kernels {
		k := make([]float64, weights.KernelTaps)
		for i := range k {
			k[i] = small()
		}
		m.Conv1Kernels[c] = k
		m.Conv1Bias[c] = small()
	}
	for i := range m.FC1Weight {
		row := make([]float64, weights.FC1Out)
		for j := range row {
			row[j] = small()
		}
		m.FC1Weight[i] = row
	}
	for j := range m.FC1Bias {
		m.FC1Bias[j] = small()
	}
	for i := range m.FC2Weight {
		row := make([]float64, weights.FC2Out)
		for j := range row {
			row[j] = small()
		}
		m.FC2Weight[i] = row
	}
	for j := range m.FC2Bias {
		m.FC2Bias[j] = small()
	}
	return m
}

func randomImage(seed int64) [][]float64 {
	r := rand.New(rand.NewSource(seed))
	image := make([][]float64, weights.ImageSize)
	for i := range image {
		row := make([]float64, weights.ImageSize)
		for j := range row {
			row[j] = r.Float64()
		}
		image[i] = row
	}
	return image
}

// plaintextForward recomputes the exact same graph in plain float64
// arithmetic, giving an oracle to check the encrypted result against.
func plaintextForward(model *weights.Model, image [][]float64) []float64 {
	windows := make([][]float64, weights.Channels)
	for c := 0; c < weights.Channels; c++ {
		out := make([]float64, weights.WindowsNB)
		for wy := 0; wy < weights.WindowsPerSide; wy++ {
			for wx := 0; wx < weights.WindowsPerSide; wx++ {
				window := wy*weights.WindowsPerSide + wx
				baseY := wy * weights.Stride
				baseX := wx * weights.Stride
				sum := model.Conv1Bias[c]
				for ky := 0; ky < weights.KernelSize; ky++ {
					for kx := 0; kx < weights.KernelSize; kx++ {
						tap := ky*weights.KernelSize + kx
						sum += image[baseY+ky][baseX+kx] * model.Conv1Kernels[c][tap]
					}
				}
				out[window] = sum
			}
		}
		windows[c] = out
	}

	packed := make([]float64, weights.FC1In)
	for c := 0; c < weights.Channels; c++ {
		for w := 0; w < weights.WindowsNB; w++ {
			packed[c*weights.WindowsNB+w] = windows[c][w]
		}
	}
	for i := range packed {
		packed[i] = packed[i] * packed[i]
	}

	fc1 := make([]float64, weights.FC1Out)
	for j := 0; j < weights.FC1Out; j++ {
		sum := model.FC1Bias[j]
		for i := 0; i < weights.FC1In; i++ {
			sum += packed[i] * model.FC1Weight[i][j]
		}
		fc1[j] = sum * sum
	}

	fc2 := make([]float64, weights.FC2Out)
	for j := 0; j < weights.FC2Out; j++ {
		sum := model.FC2Bias[j]
		for i := 0; i < weights.FC2In; i++ {
			sum += fc1[i] * model.FC2Weight[i][j]
		}
		fc2[j] = sum
	}
	return fc2
}

func maxAbsDiff(a, b []float64) float64 {
	max := 0.0
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > max {
			max = d
		}
	}
	return max
}

// TestForwardMatchesPlaintextOracle checks P3 (im2col encoding round
// trips correctly through encrypt/evaluate/decrypt) by comparing the
// packed engine's decrypted output against a plain float64 reimplementation
// of the same graph.
func TestForwardMatchesPlaintextOracle(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}

	client, err := heparams.NewClientContext(params, inference.RotationSteps())
	if err != nil {
		t.Fatalf("NewClientContext: %v", err)
	}

	model := randomModel(7)
	image := randomImage(11)

	ct, err := codec.Encrypt(client, image)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	engine, err := inference.NewPackedEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		t.Fatalf("NewPackedEngine: %v", err)
	}

	result, err := engine.Forward(context.Background(), ct)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	got, err := codec.DecodeLogits(client, result)
	if err != nil {
		t.Fatalf("DecodeLogits: %v", err)
	}

	want := plaintextForward(model, image)

	if diff := maxAbsDiff(got, want); diff > 1e-2 {
		t.Fatalf("encrypted forward diverges from plaintext oracle: max abs diff %f\ngot:  %v\nwant: %v", diff, got, want)
	}
}

// TestForwardStaysWithinDepthBudget checks P6: the forward pass consumes
// exactly five multiplicative levels (conv, square, fc1, square, fc2 — each
// a single rescale) and never exceeds the parameter set's level budget.
func TestForwardStaysWithinDepthBudget(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}

	client, err := heparams.NewClientContext(params, inference.RotationSteps())
	if err != nil {
		t.Fatalf("NewClientContext: %v", err)
	}

	model := randomModel(3)
	image := randomImage(4)

	ct, err := codec.Encrypt(client, image)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	startLevel := ct.Level()

	engine, err := inference.NewPackedEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		t.Fatalf("NewPackedEngine: %v", err)
	}

	result, err := engine.Forward(context.Background(), ct)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if result.Level() < 0 {
		t.Fatalf("result ciphertext level went negative: %d", result.Level())
	}
	if result.Level() > params.MaxLevel() {
		t.Fatalf("result ciphertext level %d exceeds parameter budget %d", result.Level(), params.MaxLevel())
	}
	consumed := startLevel - result.Level()
	if consumed != 5 {
		t.Fatalf("expected the forward pass to consume exactly 5 levels (conv, square, fc1, square, fc2), consumed=%d", consumed)
	}
	t.Logf("levels consumed by forward pass: %d (start=%d, end=%d, budget=%d)", consumed, startLevel, result.Level(), params.MaxLevel())
}

// TestForwardIsDeterministic checks P7: running the same ciphertext
// through two independently constructed packed engines (same model,
// fresh evaluator/encoder state each time) yields the same decrypted
// logits, since CKKS evaluation here has no randomized steps beyond
// the encryption noise already baked into the input ciphertext.
func TestForwardIsDeterministic(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}

	client, err := heparams.NewClientContext(params, inference.RotationSteps())
	if err != nil {
		t.Fatalf("NewClientContext: %v", err)
	}

	model := randomModel(42)
	image := randomImage(99)

	ct, err := codec.Encrypt(client, image)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	engineA, err := inference.NewPackedEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		t.Fatalf("NewPackedEngine (a): %v", err)
	}
	engineB, err := inference.NewPackedEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		t.Fatalf("NewPackedEngine (b): %v", err)
	}

	resultA, err := engineA.Forward(context.Background(), ct)
	if err != nil {
		t.Fatalf("Forward (a): %v", err)
	}
	resultB, err := engineB.Forward(context.Background(), ct)
	if err != nil {
		t.Fatalf("Forward (b): %v", err)
	}

	logitsA, err := codec.DecodeLogits(client, resultA)
	if err != nil {
		t.Fatalf("DecodeLogits (a): %v", err)
	}
	logitsB, err := codec.DecodeLogits(client, resultB)
	if err != nil {
		t.Fatalf("DecodeLogits (b): %v", err)
	}

	if diff := maxAbsDiff(logitsA, logitsB); diff > 1e-9 {
		t.Fatalf("two packed engines on the same input diverged: max abs diff %e\na: %v\nb: %v", diff, logitsA, logitsB)
	}
}

// TestPackedAndScalarEnginesAgree checks that the cached-diagonal packed
// engine and the rebuilds-every-call scalar engine compute the identical
// graph, confirming the cache is a pure performance optimization.
func TestPackedAndScalarEnginesAgree(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}

	client, err := heparams.NewClientContext(params, inference.RotationSteps())
	if err != nil {
		t.Fatalf("NewClientContext: %v", err)
	}

	model := randomModel(5)
	image := randomImage(6)

	ct, err := codec.Encrypt(client, image)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	packed, err := inference.NewPackedEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		t.Fatalf("NewPackedEngine: %v", err)
	}
	scalar, err := inference.NewScalarEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		t.Fatalf("NewScalarEngine: %v", err)
	}

	packedResult, err := packed.Forward(context.Background(), ct)
	if err != nil {
		t.Fatalf("packed Forward: %v", err)
	}
	scalarResult, err := scalar.Forward(context.Background(), ct)
	if err != nil {
		t.Fatalf("scalar Forward: %v", err)
	}

	packedLogits, err := codec.DecodeLogits(client, packedResult)
	if err != nil {
		t.Fatalf("DecodeLogits (packed): %v", err)
	}
	scalarLogits, err := codec.DecodeLogits(client, scalarResult)
	if err != nil {
		t.Fatalf("DecodeLogits (scalar): %v", err)
	}

	if diff := maxAbsDiff(packedLogits, scalarLogits); diff > 1e-9 {
		t.Fatalf("packed and scalar engines diverged: max abs diff %e\npacked: %v\nscalar: %v", diff, packedLogits, scalarLogits)
	}
}
