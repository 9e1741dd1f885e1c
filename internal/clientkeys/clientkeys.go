// Package clientkeys manages the client side of key material: generating a
// keypair under the shared CKKS parameters, deriving the key_id the server
// indexes contexts by, and persisting both the secret-bearing keypair and
// the secret-free evaluation context to disk. Grounded on
// original_source/client/streamlit_app/fhe_keys.py (generate_and_store_keys,
// key_id derivation) and the teacher's internal/crypto/key_manager.go
// (bundling params/keygen/keys behind one type), extended with the Galois
// key generation wasm/main.go's genAllKeysWrapper performs in the browser.
package clientkeys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/inference"
)

const (
	keypairFile = "keypair.seal"
	evalFile    = "eval_context.seal"
	metaFile    = "meta.json"
)

// Meta is the small JSON sidecar stored next to the two .seal files, giving
// a caller (a CLI, the wasm bridge) the key_id without parsing key bytes.
type Meta struct {
	KeyID string `json:"key_id"`
}

// Manager owns one client's key material on disk under Dir.
type Manager struct {
	Dir    string
	Params ckks.Parameters
}

// NewManager returns a Manager rooted at dir under the shared parameters.
func NewManager(dir string) (*Manager, error) {
	params, err := heparams.New()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("clientkeys: creating %s: %w", dir, err)
	}
	return &Manager{Dir: dir, Params: params}, nil
}

// Generate creates a fresh keypair (with Galois keys for every rotation the
// forward graph uses) and persists it, returning the derived key_id.
func (m *Manager) Generate() (string, error) {
	client, err := heparams.NewClientContext(m.Params, inference.RotationSteps())
	if err != nil {
		return "", fmt.Errorf("clientkeys: generating client context: %w", err)
	}

	keyPairBytes, err := client.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("clientkeys: marshaling keypair: %w", err)
	}

	evalCtx := client.Evaluation()
	evalBytes, err := evalCtx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("clientkeys: marshaling evaluation context: %w", err)
	}

	keyID := computeKeyID(evalBytes)

	if err := os.WriteFile(filepath.Join(m.Dir, keypairFile), keyPairBytes, 0o600); err != nil {
		return "", fmt.Errorf("clientkeys: writing keypair: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir, evalFile), evalBytes, 0o644); err != nil {
		return "", fmt.Errorf("clientkeys: writing evaluation context: %w", err)
	}

	meta, err := json.MarshalIndent(Meta{KeyID: keyID}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("clientkeys: marshaling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir, metaFile), meta, 0o644); err != nil {
		return "", fmt.Errorf("clientkeys: writing metadata: %w", err)
	}

	return keyID, nil
}

// computeKeyID derives a stable identifier from the evaluation context's
// bytes: the first 16 hex characters of SHA-256(evalBytes), the way
// original_source/client/streamlit_app/fhe_keys.py's _compute_key_id does
// and spec.md §4.5 specifies. 16 hex chars meets the §3 Key Identifier
// invariant (16+ chars) with margin to spare against collision.
func computeKeyID(evalBytes []byte) string {
	sum := sha256.Sum256(evalBytes)
	return hex.EncodeToString(sum[:8])
}

// EnsureKeypair loads the persisted keypair if one exists, generating and
// persisting a fresh one otherwise. This is the entrypoint a CLI or the
// wasm bridge calls on startup, mirroring fhe_keys.py's
// ensure_client_context.
func (m *Manager) EnsureKeypair() (*heparams.Context, string, error) {
	metaBytes, err := os.ReadFile(filepath.Join(m.Dir, metaFile))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("clientkeys: reading metadata: %w", err)
		}
		keyID, genErr := m.Generate()
		if genErr != nil {
			return nil, "", genErr
		}
		ctx, loadErr := m.LoadKeypair()
		return ctx, keyID, loadErr
	}

	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, "", fmt.Errorf("clientkeys: parsing metadata: %w", err)
	}

	ctx, err := m.LoadKeypair()
	if err != nil {
		return nil, "", err
	}
	return ctx, meta.KeyID, nil
}

// LoadKeypair reads back the secret-bearing client context persisted by
// Generate.
func (m *Manager) LoadKeypair() (*heparams.Context, error) {
	data, err := os.ReadFile(filepath.Join(m.Dir, keypairFile))
	if err != nil {
		return nil, fmt.Errorf("clientkeys: reading keypair: %w", err)
	}
	return heparams.UnmarshalBinary(m.Params, data)
}

// LoadEvalContext reads back the secret-free evaluation context, the
// payload /he/register-key sends to the server.
func (m *Manager) LoadEvalContext() (*heparams.Context, error) {
	data, err := os.ReadFile(filepath.Join(m.Dir, evalFile))
	if err != nil {
		return nil, fmt.Errorf("clientkeys: reading evaluation context: %w", err)
	}
	return heparams.UnmarshalBinary(m.Params, data)
}
