package heparams

import "testing"

func TestNew(t *testing.T) {
	params, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if params.LogN() != 15 {
		t.Errorf("expected LogN=15, got %d", params.LogN())
	}

	if params.MaxSlots() != 1<<14 {
		t.Errorf("expected MaxSlots=%d, got %d", 1<<14, params.MaxSlots())
	}

	if MaxDepth(params) != 7 {
		t.Errorf("expected MaxDepth=7, got %d", MaxDepth(params))
	}
}

func TestClientContextRoundTrip(t *testing.T) {
	params, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	steps := []int{1, 2, 4, 49, -49}
	ctx, err := NewClientContext(params, steps)
	if err != nil {
		t.Fatalf("NewClientContext failed: %v", err)
	}

	if !ctx.HasSecretKey() {
		t.Fatal("client context should carry a secret key")
	}

	evalCtx := ctx.Evaluation()
	if evalCtx.HasSecretKey() {
		t.Fatal("evaluation context should not carry a secret key")
	}
	if len(evalCtx.GaloisKeys) != len(steps) {
		t.Fatalf("expected %d galois keys, got %d", len(steps), len(evalCtx.GaloisKeys))
	}

	data, err := evalCtx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	restored, err := UnmarshalBinary(params, data)
	if err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if restored.HasSecretKey() {
		t.Fatal("restored evaluation context should not carry a secret key")
	}
	if len(restored.GaloisKeys) != len(steps) {
		t.Fatalf("expected %d restored galois keys, got %d", len(steps), len(restored.GaloisKeys))
	}
}

func TestClientContextWithSecretKeyRoundTrip(t *testing.T) {
	params, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, err := NewClientContext(params, nil)
	if err != nil {
		t.Fatalf("NewClientContext failed: %v", err)
	}

	data, err := ctx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	restored, err := UnmarshalBinary(params, data)
	if err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if !restored.HasSecretKey() {
		t.Fatal("restored client context should carry a secret key")
	}
}
