package inference

import (
	"context"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// Forward is the single polymorphic surface the inference engine exposes:
// run the fixed conv -> square -> fc1 -> square -> fc2 graph on an
// im2col-encoded ciphertext and return the 7 encrypted emotion logits in
// the result's leading slots. packedEngine is the production strategy;
// scalarEngine is a reference implementation used in tests, not reachable
// from the HTTP path.
type Forward interface {
	Forward(ctx context.Context, x *rlwe.Ciphertext) (*rlwe.Ciphertext, error)
}
