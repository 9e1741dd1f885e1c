package inference

import (
	"testing"

	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

func TestRotationStepsCoversEveryLayer(t *testing.T) {
	steps := RotationSteps()

	seen := make(map[int]bool, len(steps))
	for _, s := range steps {
		if seen[s] {
			t.Fatalf("duplicate rotation step %d", s)
		}
		seen[s] = true
		if s == 0 {
			t.Fatal("rotation by 0 should never be requested, it is a no-op copy")
		}
	}

	for c := 1; c < weights.KernelTaps; c++ {
		if !seen[c*weights.WindowsNB] {
			t.Errorf("missing conv rotation step %d", c*weights.WindowsNB)
		}
	}
	for ch := 1; ch < weights.Channels; ch++ {
		if !seen[-(ch * weights.WindowsNB)] {
			t.Errorf("missing channel-pack rotation step %d", -(ch * weights.WindowsNB))
		}
	}
	for d := 1; d < weights.FC1In; d++ {
		if !seen[d] {
			t.Errorf("missing fc1 rotation step %d", d)
		}
	}
}
