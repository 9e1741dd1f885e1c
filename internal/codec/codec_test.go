package codec

import (
	"testing"

	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

func blankImage() [][]float64 {
	img := make([][]float64, weights.ImageSize)
	for i := range img {
		img[i] = make([]float64, weights.ImageSize)
	}
	return img
}

func TestEncodeIm2ColShape(t *testing.T) {
	img := blankImage()
	img[0][0] = 1
	img[47][47] = 2

	out, err := EncodeIm2Col(img)
	if err != nil {
		t.Fatalf("EncodeIm2Col: %v", err)
	}
	if len(out) != weights.KernelTaps*weights.WindowsNB {
		t.Fatalf("expected %d slots, got %d", weights.KernelTaps*weights.WindowsNB, len(out))
	}

	// img[0][0] only ever lands in tap (0,0) of window (0,0).
	if out[0*weights.WindowsNB+0] != 1 {
		t.Errorf("expected slot 0 to carry img[0][0]=1, got %v", out[0])
	}
}

func TestEncodeIm2ColRejectsWrongSize(t *testing.T) {
	img := make([][]float64, 10)
	for i := range img {
		img[i] = make([]float64, 10)
	}
	if _, err := EncodeIm2Col(img); err == nil {
		t.Fatal("expected an error for a 10x10 image, got nil")
	}
}
