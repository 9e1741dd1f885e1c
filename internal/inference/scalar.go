package inference

import (
	"context"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

// scalarEngine mirrors packedEngine's algorithm exactly, without the
// precomputed diagonal cache: buildDiagonals runs again on every Forward
// call. It exists as the reference implementation tests check the packed
// engine against (grounded on
// original_source/backend/app/fhe_core/fhe_inference.py's EncryptedCNNRunner,
// the original's slow unoptimized runner) — easier to audit, much slower to
// run at scale, never wired to the HTTP path.
type scalarEngine struct {
	ec    *evalCtx
	model *weights.Model
}

// NewScalarEngine builds the reference engine.
func NewScalarEngine(params ckks.Parameters, keys rlwe.EvaluationKeySet, model *weights.Model) (Forward, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	eval := ckks.NewEvaluator(params, keys)
	enc := ckks.NewEncoder(params)
	return &scalarEngine{ec: newEvalCtx(params, eval, enc), model: model}, nil
}

func (s *scalarEngine) Forward(ctx context.Context, x *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	fc1Diag := buildDiagonals(s.model.FC1Weight, weights.FC1In, weights.FC1Out)
	fc2Diag := buildDiagonals(s.model.FC2Weight, weights.FC2In, weights.FC2Out)
	return runForward(ctx, s.ec, s.model, fc1Diag, fc2Diag, x)
}
