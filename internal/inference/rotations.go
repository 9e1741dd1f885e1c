package inference

import "github.com/z3rotig4r/emotion-fhe/internal/weights"

// RotationSteps returns the full set of rotation amounts the forward graph
// needs Galois keys for: one per convolution tap (aligning each im2col
// block), one per channel (packing channel outputs into a single
// ciphertext), and one per input slot of each fully-connected layer's
// diagonal matrix-vector product. The client generates Galois keys for
// exactly this set — rotating by anything else fails with ErrHEEvalFailure.
func RotationSteps() []int {
	seen := make(map[int]struct{})
	add := func(step int) {
		if step != 0 {
			seen[step] = struct{}{}
		}
	}

	for c := 1; c < weights.KernelTaps; c++ {
		add(c * weights.WindowsNB)
	}
	for ch := 1; ch < weights.Channels; ch++ {
		add(-(ch * weights.WindowsNB))
	}
	for d := 1; d < weights.FC1In; d++ {
		add(d)
	}
	for d := 1; d < weights.FC2In; d++ {
		add(d)
	}

	steps := make([]int, 0, len(seen))
	for step := range seen {
		steps = append(steps, step)
	}
	return steps
}
