package inference

import (
	"context"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

// packedEngine is the production Forward implementation. It precomputes the
// fully-connected layers' diagonal vectors once at construction, since
// they depend only on the (fixed) model weights and get reused across every
// request the process serves; encoding them into plaintexts still happens
// on each Forward call.
type packedEngine struct {
	ec    *evalCtx
	model *weights.Model

	fc1Diagonals [][]float64
	fc2Diagonals [][]float64
}

// NewPackedEngine builds the production engine. keys must carry the
// relinearization key and the full rotation set RotationSteps() names —
// normally the evaluation context registered for the request's key_id.
func NewPackedEngine(params ckks.Parameters, keys rlwe.EvaluationKeySet, model *weights.Model) (Forward, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	eval := ckks.NewEvaluator(params, keys)
	enc := ckks.NewEncoder(params)
	ec := newEvalCtx(params, eval, enc)

	return &packedEngine{
		ec:           ec,
		model:        model,
		fc1Diagonals: buildDiagonals(model.FC1Weight, weights.FC1In, weights.FC1Out),
		fc2Diagonals: buildDiagonals(model.FC2Weight, weights.FC2In, weights.FC2Out),
	}, nil
}

func (p *packedEngine) Forward(ctx context.Context, x *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	return runForward(ctx, p.ec, p.model, p.fc1Diagonals, p.fc2Diagonals, x)
}

// runForward is the graph both engines execute; they differ only in how
// fc1Diagonals/fc2Diagonals were produced (cached vs rebuilt per call).
func runForward(ctx context.Context, ec *evalCtx, model *weights.Model, fc1Diag, fc2Diag [][]float64, x *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHEEvalFailure, err)
	}

	channels := make([]*rlwe.Ciphertext, weights.Channels)
	for c := 0; c < weights.Channels; c++ {
		ct, err := convChannel(ec, x, model.Conv1Kernels[c], model.Conv1Bias[c])
		if err != nil {
			return nil, fmt.Errorf("conv channel %d: %w", c, err)
		}
		channels[c] = ct
	}

	packed, err := channelPack(ec, channels)
	if err != nil {
		return nil, fmt.Errorf("channel pack: %w", err)
	}

	sq1, err := squareLayer(ec, packed)
	if err != nil {
		return nil, fmt.Errorf("square 1: %w", err)
	}

	fc1, err := diagMatMul(ec, sq1, fc1Diag, model.FC1Bias, weights.FC1In, weights.FC1Out)
	if err != nil {
		return nil, fmt.Errorf("fc1: %w", err)
	}

	sq2, err := squareLayer(ec, fc1)
	if err != nil {
		return nil, fmt.Errorf("square 2: %w", err)
	}

	fc2, err := diagMatMul(ec, sq2, fc2Diag, model.FC2Bias, weights.FC2In, weights.FC2Out)
	if err != nil {
		return nil, fmt.Errorf("fc2: %w", err)
	}

	return fc2, nil
}
