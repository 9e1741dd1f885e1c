// Command benchmark runs the forward graph end-to-end in-process (no
// server involved) against a synthetic weight fixture, reporting the
// final ciphertext level (verifying the depth budget, testable property
// P6) and timing for both the packed and scalar engines. This replaces the
// teacher's sigmoid/noise benchmarking harness (backend/cmd/benchmark/*),
// rebuilt against the CNN's depth budget instead of logistic-regression
// sigmoid noise.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

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

func main() {
	params, err := heparams.New()
	if err != nil {
		log.Fatalf("benchmark: %v", err)
	}
	fmt.Printf("params: LogN=%d MaxLevel=%d MaxSlots=%d\n", params.LogN(), params.MaxLevel(), params.MaxSlots())

	client, err := heparams.NewClientContext(params, inference.RotationSteps())
	if err != nil {
		log.Fatalf("benchmark: generating client context: %v", err)
	}

	model := randomModel(1)

	image := make([][]float64, weights.ImageSize)
	r := rand.New(rand.NewSource(2))
	for i := range image {
		row := make([]float64, weights.ImageSize)
		for j := range row {
			row[j] = r.Float64()
		}
		image[i] = row
	}

	ct, err := codec.Encrypt(client, image)
	if err != nil {
		log.Fatalf("benchmark: encrypting image: %v", err)
	}
	fmt.Printf("input ciphertext level: %d\n", ct.Level())

	packed, err := inference.NewPackedEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		log.Fatalf("benchmark: building packed engine: %v", err)
	}

	start := time.Now()
	result, err := packed.Forward(context.Background(), ct)
	if err != nil {
		log.Fatalf("benchmark: packed forward failed: %v", err)
	}
	elapsed := time.Since(start)
	fmt.Printf("packed engine: level after forward=%d (depth budget=%d), elapsed=%s\n", result.Level(), params.MaxLevel(), elapsed)

	logits, err := codec.DecodeLogits(client, result)
	if err != nil {
		log.Fatalf("benchmark: decoding logits: %v", err)
	}
	fmt.Printf("logits: %v\n", logits)

	scalar, err := inference.NewScalarEngine(params, client.EvaluationKeySet(), model)
	if err != nil {
		log.Fatalf("benchmark: building scalar engine: %v", err)
	}
	scalarResult, err := scalar.Forward(context.Background(), ct)
	if err != nil {
		log.Fatalf("benchmark: scalar forward failed: %v", err)
	}
	scalarLogits, err := codec.DecodeLogits(client, scalarResult)
	if err != nil {
		log.Fatalf("benchmark: decoding scalar logits: %v", err)
	}
	fmt.Printf("scalar engine logits (reference): %v\n", scalarLogits)
}
