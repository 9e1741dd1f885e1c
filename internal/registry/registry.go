// Package registry tracks, per key_id, the evaluation context (public key,
// relinearization key, Galois keys) a client has registered so the
// inference engine can evaluate that client's ciphertexts. Grounded on
// hkanpak21-lattigostats/pkg/storage/storage.go's TableStore: a mutex-guarded
// in-memory index backed by files under a base directory, with the same
// "check cache, fall back to disk, populate cache" lookup shape.
package registry

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/inference"
)

// Registry is a scoped singleton: one instance per process, constructed
// once at startup and passed explicitly to whatever needs it, rather than
// looked up through a global.
type Registry struct {
	params ckks.Parameters
	dir    string

	mu    sync.RWMutex
	cache map[string]*heparams.Context
}

// New creates a Registry rooted at dir, creating the directory if it does
// not already exist.
func New(params ckks.Parameters, dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: creating %s: %w", dir, err)
	}
	return &Registry{
		params: params,
		dir:    dir,
		cache:  make(map[string]*heparams.Context),
	}, nil
}

func (r *Registry) path(keyID string) string {
	return filepath.Join(r.dir, keyID+".seal")
}

// Register stores an evaluation context under keyID. Re-registering the
// same key_id overwrites the previous context; spec.md §4.3 calls this
// idempotent rather than an error, since a client re-uploading its own
// context (e.g. after regenerating Galois keys) is a normal occurrence, not
// a conflict.
func (r *Registry) Register(keyID string, ctx *heparams.Context) error {
	if ctx.HasSecretKey() {
		log.Printf("registry: key_id %s was registered with a secret key attached; accepting and discarding nothing, but this should not happen from a correctly behaving client", keyID)
	}

	data, err := ctx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("registry: marshaling context for %s: %w", keyID, err)
	}

	if err := os.WriteFile(r.path(keyID), data, 0o644); err != nil {
		return fmt.Errorf("registry: writing context for %s: %w", keyID, err)
	}

	r.mu.Lock()
	r.cache[keyID] = ctx
	r.mu.Unlock()

	return nil
}

// Lookup returns the evaluation context for keyID, checking the in-memory
// cache first and falling back to disk on a miss. It returns
// inference.ErrUnknownKey when neither has it.
func (r *Registry) Lookup(keyID string) (*heparams.Context, error) {
	r.mu.RLock()
	ctx, ok := r.cache[keyID]
	r.mu.RUnlock()
	if ok {
		return ctx, nil
	}

	data, err := os.ReadFile(r.path(keyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", inference.ErrUnknownKey, keyID)
		}
		return nil, fmt.Errorf("registry: reading context for %s: %w", keyID, err)
	}

	restored, err := heparams.UnmarshalBinary(r.params, data)
	if err != nil {
		return nil, fmt.Errorf("registry: unmarshaling context for %s: %w", keyID, err)
	}

	r.mu.Lock()
	r.cache[keyID] = restored
	r.mu.Unlock()

	return restored, nil
}

// Forget removes a key_id's context from the in-memory cache and from disk.
// Not exposed over HTTP today; it exists for operational cleanup and tests.
func (r *Registry) Forget(keyID string) error {
	r.mu.Lock()
	delete(r.cache, keyID)
	r.mu.Unlock()

	if err := os.Remove(r.path(keyID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("registry: removing context for %s: %w", keyID, err)
	}
	return nil
}
