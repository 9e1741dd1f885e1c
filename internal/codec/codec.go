// Package codec implements the client-side encoding of a 48x48 grayscale
// image into the im2col ciphertext layout the inference engine expects, and
// the decoding of the resulting logits ciphertext back into plaintext
// scores. Grounded on
// original_source/backend/app/fhe_core/fhe_inference.py's
// PackedEncryptedCNNRunner.encrypt_image (the im2col_encoding call) and
// EncryptedCNNRunner/decrypt_logits.
package codec

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/inference"
	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

// EncodeIm2Col lays a weights.ImageSize x weights.ImageSize image out into
// the convolution's im2col slot layout: windows_nb (49) output positions
// per receptive-field tap, 81 taps stacked consecutively, so tap c occupies
// slots [c*WindowsNB, (c+1)*WindowsNB). Tap-major, position-minor ordering
// matches what internal/inference's convChannel expects to rotate against.
func EncodeIm2Col(image [][]float64) ([]float64, error) {
	if len(image) != weights.ImageSize {
		return nil, fmt.Errorf("%w: expected %d rows, got %d", inference.ErrShapeMismatch, weights.ImageSize, len(image))
	}
	for r, row := range image {
		if len(row) != weights.ImageSize {
			return nil, fmt.Errorf("%w: row %d: expected %d columns, got %d", inference.ErrShapeMismatch, r, weights.ImageSize, len(row))
		}
	}

	out := make([]float64, weights.KernelTaps*weights.WindowsNB)
	for wy := 0; wy < weights.WindowsPerSide; wy++ {
		for wx := 0; wx < weights.WindowsPerSide; wx++ {
			window := wy*weights.WindowsPerSide + wx
			baseY := wy * weights.Stride
			baseX := wx * weights.Stride
			for ky := 0; ky < weights.KernelSize; ky++ {
				for kx := 0; kx < weights.KernelSize; kx++ {
					tap := ky*weights.KernelSize + kx
					out[tap*weights.WindowsNB+window] = image[baseY+ky][baseX+kx]
				}
			}
		}
	}
	return out, nil
}

// Encrypt encodes and encrypts an image under ctx's public key, returning
// the ciphertext the server's /emotion/analyze-today endpoint expects.
func Encrypt(ctx *heparams.Context, image [][]float64) (*rlwe.Ciphertext, error) {
	values, err := EncodeIm2Col(image)
	if err != nil {
		return nil, err
	}

	enc := ckks.NewEncoder(ctx.Params)
	cvals := make([]complex128, ctx.Params.MaxSlots())
	for i, v := range values {
		cvals[i] = complex(v, 0)
	}
	pt := ckks.NewPlaintext(ctx.Params, ctx.Params.MaxLevel())
	enc.Encode(cvals, pt)

	encryptor := ckks.NewEncryptor(ctx.Params, ctx.PublicKey)
	ct, err := encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("codec: encrypting image: %w", err)
	}
	return ct, nil
}

// DecodeLogits decrypts result and returns the weights.FC2Out emotion
// logits from its leading slots.
func DecodeLogits(ctx *heparams.Context, result *rlwe.Ciphertext) ([]float64, error) {
	if ctx.SecretKey == nil {
		return nil, fmt.Errorf("codec: decoding requires a secret key, got an evaluation-only context")
	}

	decryptor := ckks.NewDecryptor(ctx.Params, ctx.SecretKey)
	pt := decryptor.DecryptNew(result)

	enc := ckks.NewEncoder(ctx.Params)
	cvals := make([]complex128, ctx.Params.MaxSlots())
	enc.Decode(pt, cvals)

	logits := make([]float64, weights.FC2Out)
	for i := range logits {
		logits[i] = real(cvals[i])
	}
	return logits, nil
}
