package inference

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

// buildDiagonals reshapes a transposed weight matrix (weightT[i][j], input
// index i, output index j) into the diagonal form the rotate-and-accumulate
// matrix-vector product needs: diagonals[d][j] = weightT[(j+d)%nIn][j] for
// j < nOut, zero elsewhere. Rotating the input ciphertext left by d and
// multiplying by diagonals[d] lines up input[(j+d)%nIn] under output slot j;
// summing over every d in [0, nIn) yields, at slot j, the full dot product
// of the input vector with column j of weightT (every input index i is hit
// by exactly one d = (j - i) mod nIn).
func buildDiagonals(weightT [][]float64, nIn, nOut int) [][]float64 {
	diagonals := make([][]float64, nIn)
	for d := 0; d < nIn; d++ {
		diag := make([]float64, nOut)
		for j := 0; j < nOut; j++ {
			diag[j] = weightT[(j+d)%nIn][j]
		}
		diagonals[d] = diag
	}
	return diagonals
}

// diagMatMul evaluates y = W^T x + bias homomorphically, where ct encodes x
// in its first nIn slots and diagonals is buildDiagonals's output for W^T.
// It consumes exactly one multiplicative level: every term is a
// ciphertext-plaintext product at ct's level, summed before the single
// rescale.
func diagMatMul(e *evalCtx, ct *rlwe.Ciphertext, diagonals [][]float64, bias []float64, nIn, nOut int) (*rlwe.Ciphertext, error) {
	if len(diagonals) != nIn {
		return nil, fmt.Errorf("%w: expected %d diagonals, got %d", ErrShapeMismatch, nIn, len(diagonals))
	}

	var acc *rlwe.Ciphertext
	for d := 0; d < nIn; d++ {
		rotated, err := e.rotate(ct, d)
		if err != nil {
			return nil, err
		}
		pt := e.encodeFloats(diagonals[d], rotated.Level(), rotated.Scale)
		term, err := e.mulPlaintext(rotated, pt)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = term
			continue
		}
		acc, err = e.add(acc, term)
		if err != nil {
			return nil, err
		}
	}

	rescaled, err := e.rescale(acc)
	if err != nil {
		return nil, err
	}

	biasPt := e.encodeFloats(bias, rescaled.Level(), rescaled.Scale)
	out := rescaled.CopyNew()
	if err := e.eval.Add(rescaled, biasPt, out); err != nil {
		return nil, fmt.Errorf("%w: fc bias add: %v", ErrHEEvalFailure, err)
	}
	return out, nil
}

// convChannel evaluates one output channel of the im2col convolution: ct
// encodes the 9x9x49-slot im2col layout (81 blocks of weights.WindowsNB
// slots, block c holding the c-th receptive-field tap across all 49
// windows). Rotating left by c*WindowsNB brings block c's windows to the
// front; multiplying by the scalar kernel tap and accumulating over all 81
// taps leaves the channel's 49 conv outputs in the leading slots.
func convChannel(e *evalCtx, ct *rlwe.Ciphertext, kernel []float64, bias float64) (*rlwe.Ciphertext, error) {
	if len(kernel) != weights.KernelTaps {
		return nil, fmt.Errorf("%w: expected %d kernel taps, got %d", ErrShapeMismatch, weights.KernelTaps, len(kernel))
	}

	var acc *rlwe.Ciphertext
	for c := 0; c < weights.KernelTaps; c++ {
		rotated, err := e.rotate(ct, c*weights.WindowsNB)
		if err != nil {
			return nil, err
		}
		term, err := e.mulConst(rotated, complex(kernel[c], 0))
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = term
			continue
		}
		acc, err = e.add(acc, term)
		if err != nil {
			return nil, err
		}
	}

	rescaled, err := e.rescale(acc)
	if err != nil {
		return nil, err
	}

	out, err := e.addConst(rescaled, complex(bias, 0))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// channelPack combines weights.Channels per-channel ciphertexts (each with
// its WindowsNB meaningful values in the leading slots) into a single
// ciphertext with all channels laid out consecutively: channel i occupies
// slots [i*WindowsNB, (i+1)*WindowsNB). No multiplication is involved, so
// packing is free of multiplicative depth.
func channelPack(e *evalCtx, channels []*rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if len(channels) != weights.Channels {
		return nil, fmt.Errorf("%w: expected %d channels, got %d", ErrShapeMismatch, weights.Channels, len(channels))
	}

	acc, err := e.rotate(channels[0], 0)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(channels); i++ {
		shifted, err := e.rotate(channels[i], -(i * weights.WindowsNB))
		if err != nil {
			return nil, err
		}
		acc, err = e.add(acc, shifted)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// squareLayer applies the network's only nonlinearity: elementwise square,
// i.e. ct*ct relinearized and rescaled. This is the one place Square (from
// the fixed conv -> square -> fc -> square -> fc graph) shows up; unlike the
// teacher's sigmoid approximation it needs no polynomial evaluation.
func squareLayer(e *evalCtx, ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	sq, err := e.mulRelin(ct, ct)
	if err != nil {
		return nil, err
	}
	return e.rescale(sq)
}
