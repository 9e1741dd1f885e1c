package inference

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// evalCtx is a thin wrapper around the CKKS evaluator and encoder, grounded
// on hkanpak21-lattigostats/pkg/he/evaluator.go. Unlike that package this one
// does not track call statistics; the forward graph is fixed and small
// enough that per-call profiling adds nothing the caller can act on.
type evalCtx struct {
	params ckks.Parameters
	eval   *ckks.Evaluator
	enc    *ckks.Encoder
}

func newEvalCtx(params ckks.Parameters, eval *ckks.Evaluator, enc *ckks.Encoder) *evalCtx {
	return &evalCtx{params: params, eval: eval, enc: enc}
}

func (e *evalCtx) mulRelin(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out, err := e.eval.MulRelinNew(a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: ct*ct multiply: %v", ErrHEEvalFailure, err)
	}
	return out, nil
}

func (e *evalCtx) mulPlaintext(ct *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	out, err := e.eval.MulNew(ct, pt)
	if err != nil {
		return nil, fmt.Errorf("%w: ct*pt multiply: %v", ErrHEEvalFailure, err)
	}
	return out, nil
}

func (e *evalCtx) mulConst(ct *rlwe.Ciphertext, c complex128) (*rlwe.Ciphertext, error) {
	out := ct.CopyNew()
	if err := e.eval.Mul(ct, c, out); err != nil {
		return nil, fmt.Errorf("%w: ct*const multiply: %v", ErrHEEvalFailure, err)
	}
	return out, nil
}

func (e *evalCtx) addConst(ct *rlwe.Ciphertext, c complex128) (*rlwe.Ciphertext, error) {
	out := ct.CopyNew()
	if err := e.eval.Add(ct, c, out); err != nil {
		return nil, fmt.Errorf("%w: ct+const add: %v", ErrHEEvalFailure, err)
	}
	return out, nil
}

func (e *evalCtx) add(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := a.CopyNew()
	if err := e.eval.Add(a, b, out); err != nil {
		return nil, fmt.Errorf("%w: ct+ct add: %v", ErrHEEvalFailure, err)
	}
	return out, nil
}

func (e *evalCtx) rescale(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := ct.CopyNew()
	if err := e.eval.Rescale(ct, out); err != nil {
		return nil, fmt.Errorf("%w: rescale: %v", ErrHEEvalFailure, err)
	}
	return out, nil
}

func (e *evalCtx) rotate(ct *rlwe.Ciphertext, k int) (*rlwe.Ciphertext, error) {
	if k == 0 {
		return ct.CopyNew(), nil
	}
	out, err := e.eval.RotateNew(ct, k)
	if err != nil {
		return nil, fmt.Errorf("%w: rotate by %d: %v", ErrHEEvalFailure, k, err)
	}
	return out, nil
}

// encodeFloats encodes a full-width plaintext at ct's level and scale from
// values, zero-padding past len(values) up to the number of slots.
func (e *evalCtx) encodeFloats(values []float64, level int, scale rlwe.Scale) *rlwe.Plaintext {
	slots := e.params.MaxSlots()
	cvals := make([]complex128, slots)
	for i, v := range values {
		if i >= slots {
			break
		}
		cvals[i] = complex(v, 0)
	}
	pt := ckks.NewPlaintext(e.params, level)
	pt.Scale = scale
	e.enc.Encode(cvals, pt)
	return pt
}

func (e *evalCtx) decodeFloats(pt *rlwe.Plaintext) []float64 {
	cvals := make([]complex128, e.params.MaxSlots())
	e.enc.Decode(pt, cvals)
	out := make([]float64, len(cvals))
	for i, v := range cvals {
		out[i] = real(v)
	}
	return out
}
