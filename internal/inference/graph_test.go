package inference

import "testing"

func TestBuildDiagonalsRecoversDotProduct(t *testing.T) {
	// 3 inputs -> 2 outputs, small enough to hand-check.
	weightT := [][]float64{
		{1, 0},
		{0, 1},
		{2, 3},
	}
	nIn, nOut := 3, 2
	diagonals := buildDiagonals(weightT, nIn, nOut)

	if len(diagonals) != nIn {
		t.Fatalf("expected %d diagonals, got %d", nIn, len(diagonals))
	}

	x := []float64{5, 7, 11}
	want := []float64{
		x[0]*weightT[0][0] + x[1]*weightT[1][0] + x[2]*weightT[2][0],
		x[0]*weightT[0][1] + x[1]*weightT[1][1] + x[2]*weightT[2][1],
	}

	got := make([]float64, nOut)
	for d := 0; d < nIn; d++ {
		for j := 0; j < nOut; j++ {
			rotatedInput := x[(j+d)%nIn]
			got[j] += rotatedInput * diagonals[d][j]
		}
	}

	for j := range want {
		if got[j] != want[j] {
			t.Errorf("output %d: want %v, got %v", j, want[j], got[j])
		}
	}
}
