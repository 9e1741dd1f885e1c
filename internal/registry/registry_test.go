package registry

import (
	"errors"
	"testing"

	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/inference"
)

func TestRegisterAndLookup(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}

	reg, err := New(params, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	client, err := heparams.NewClientContext(params, []int{1, 2})
	if err != nil {
		t.Fatalf("NewClientContext: %v", err)
	}
	evalCtx := client.Evaluation()

	if err := reg.Register("abc123", evalCtx); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.HasSecretKey() {
		t.Fatal("looked-up context should not carry a secret key")
	}
}

func TestLookupUnknownKey(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}
	reg, err := New(params, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = reg.Lookup("does-not-exist")
	if !errors.Is(err, inference.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

// TestRegisterIsIdempotentWithReplacement checks P4: re-registering the
// same key_id with different eval bytes replaces the cached and persisted
// context in place, rather than erroring or leaving the first registration
// reachable.
func TestRegisterIsIdempotentWithReplacement(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}
	dir := t.TempDir()

	reg, err := New(params, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := heparams.NewClientContext(params, []int{1})
	if err != nil {
		t.Fatalf("NewClientContext (first): %v", err)
	}
	if err := reg.Register("rotating-key", first.Evaluation()); err != nil {
		t.Fatalf("Register (first): %v", err)
	}

	second, err := heparams.NewClientContext(params, []int{1, 2, 4})
	if err != nil {
		t.Fatalf("NewClientContext (second): %v", err)
	}
	if err := reg.Register("rotating-key", second.Evaluation()); err != nil {
		t.Fatalf("Register (second): %v", err)
	}

	// The two eval contexts are distinguishable by how many Galois keys
	// they carry (1 vs 3); a same-process Lookup must see the second.
	got, err := reg.Lookup("rotating-key")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got.GaloisKeys) != len(second.Evaluation().GaloisKeys) {
		t.Fatalf("cached Lookup after re-registration returned the first context: got %d galois keys, want %d", len(got.GaloisKeys), len(second.Evaluation().GaloisKeys))
	}

	// A fresh Registry over the same directory must also see the second
	// context, confirming the on-disk file was overwritten, not appended.
	reopened, err := New(params, dir)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	fromDisk, err := reopened.Lookup("rotating-key")
	if err != nil {
		t.Fatalf("Lookup (reopened): %v", err)
	}
	if len(fromDisk.GaloisKeys) != len(second.Evaluation().GaloisKeys) {
		t.Fatalf("on-disk context after re-registration is the first context: got %d galois keys, want %d", len(fromDisk.GaloisKeys), len(second.Evaluation().GaloisKeys))
	}
}

func TestLookupFallsBackToDiskAfterCacheEviction(t *testing.T) {
	params, err := heparams.New()
	if err != nil {
		t.Fatalf("heparams.New: %v", err)
	}
	dir := t.TempDir()

	reg, err := New(params, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client, err := heparams.NewClientContext(params, nil)
	if err != nil {
		t.Fatalf("NewClientContext: %v", err)
	}
	if err := reg.Register("cache-test", client.Evaluation()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// A second Registry instance over the same directory has an empty
	// cache but must still find the persisted context.
	reopened, err := New(params, dir)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	if _, err := reopened.Lookup("cache-test"); err != nil {
		t.Fatalf("Lookup on reopened registry: %v", err)
	}
}
