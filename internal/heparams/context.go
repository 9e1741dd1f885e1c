package heparams

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// Context bundles everything one side of a CKKS exchange needs: the scheme
// parameters plus whichever key material that side holds. A client context
// carries a SecretKey; an evaluation context registered with the server
// never does. Both carry the PublicKey, RelinearizationKey and GaloisKeys
// needed to evaluate ciphertexts produced under this parameter set.
type Context struct {
	Params     ckks.Parameters
	PublicKey  *rlwe.PublicKey
	SecretKey  *rlwe.SecretKey // nil on an evaluation-only context
	RelinKey   *rlwe.RelinearizationKey
	GaloisKeys []*rlwe.GaloisKey
}

// HasSecretKey reports whether this context can decrypt. The registry
// (internal/registry) logs a warning and accepts contexts where this is
// true, since a correctly-behaving client should never hand its secret key
// to the server, but a malformed upload is not itself cause to reject.
func (c *Context) HasSecretKey() bool {
	return c.SecretKey != nil
}

// EvaluationKeySet wraps the relinearization and Galois keys into the form
// the ckks.Evaluator expects. Grounded on backend/test_basic_crypto.go's
// rlwe.NewMemEvaluationKeySet(rlk, galoisKeys...) call.
func (c *Context) EvaluationKeySet() rlwe.EvaluationKeySet {
	return rlwe.NewMemEvaluationKeySet(c.RelinKey, c.GaloisKeys...)
}

// NewClientContext generates a fresh secret key, public key, relinearization
// key and Galois keys (for the supplied rotation steps) under params.
func NewClientContext(params ckks.Parameters, rotationSteps []int) (*Context, error) {
	kgen := ckks.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)

	galEls := make([]uint64, 0, len(rotationSteps))
	for _, step := range rotationSteps {
		galEls = append(galEls, params.GaloisElement(step))
	}
	var galKeys []*rlwe.GaloisKey
	if len(galEls) > 0 {
		galKeys = kgen.GenGaloisKeysNew(galEls, sk)
	}

	return &Context{
		Params:     params,
		PublicKey:  pk,
		SecretKey:  sk,
		RelinKey:   rlk,
		GaloisKeys: galKeys,
	}, nil
}

// Evaluation strips the secret key from a client context, producing exactly
// the artifact the client uploads to /he/register-key.
func (c *Context) Evaluation() *Context {
	return &Context{
		Params:     c.Params,
		PublicKey:  c.PublicKey,
		RelinKey:   c.RelinKey,
		GaloisKeys: c.GaloisKeys,
	}
}

// wire format: a flags byte (bit0=secret key present, bits unused otherwise
// are reserved) followed by length-prefixed fields in a fixed order: public
// key, [secret key], relinearization key, galois key count, then each galois
// key length-prefixed. Parameters are not serialized; both sides construct
// them from the shared Literal and only key material crosses the wire.
const flagSecretKey = 1 << 0

func writeField(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readField(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// MarshalBinary serializes the key material carried by c. Params are not
// included; UnmarshalBinary needs the parameters passed in separately since
// they are shared, static, and never travel with a single context.
func (c *Context) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	flags := byte(0)
	if c.SecretKey != nil {
		flags |= flagSecretKey
	}
	buf.WriteByte(flags)

	pkBytes, err := c.PublicKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("heparams: marshaling public key: %w", err)
	}
	if err := writeField(&buf, pkBytes); err != nil {
		return nil, fmt.Errorf("heparams: writing public key: %w", err)
	}

	if c.SecretKey != nil {
		skBytes, err := c.SecretKey.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("heparams: marshaling secret key: %w", err)
		}
		if err := writeField(&buf, skBytes); err != nil {
			return nil, fmt.Errorf("heparams: writing secret key: %w", err)
		}
	}

	rlkBytes, err := c.RelinKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("heparams: marshaling relinearization key: %w", err)
	}
	if err := writeField(&buf, rlkBytes); err != nil {
		return nil, fmt.Errorf("heparams: writing relinearization key: %w", err)
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(c.GaloisKeys))); err != nil {
		return nil, fmt.Errorf("heparams: writing galois key count: %w", err)
	}
	for i, gk := range c.GaloisKeys {
		gkBytes, err := gk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("heparams: marshaling galois key %d: %w", i, err)
		}
		if err := writeField(&buf, gkBytes); err != nil {
			return nil, fmt.Errorf("heparams: writing galois key %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary reconstructs a Context from MarshalBinary's output. params
// must be the same parameter set the context was created under.
func UnmarshalBinary(params ckks.Parameters, data []byte) (*Context, error) {
	r := bytes.NewReader(data)

	flagByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("heparams: reading flags: %w", err)
	}
	hasSecret := flagByte&flagSecretKey != 0

	pkBytes, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("heparams: reading public key: %w", err)
	}
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(pkBytes); err != nil {
		return nil, fmt.Errorf("heparams: unmarshaling public key: %w", err)
	}

	var sk *rlwe.SecretKey
	if hasSecret {
		skBytes, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("heparams: reading secret key: %w", err)
		}
		sk = new(rlwe.SecretKey)
		if err := sk.UnmarshalBinary(skBytes); err != nil {
			return nil, fmt.Errorf("heparams: unmarshaling secret key: %w", err)
		}
	}

	rlkBytes, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("heparams: reading relinearization key: %w", err)
	}
	rlk := new(rlwe.RelinearizationKey)
	if err := rlk.UnmarshalBinary(rlkBytes); err != nil {
		return nil, fmt.Errorf("heparams: unmarshaling relinearization key: %w", err)
	}

	var galCount uint32
	if err := binary.Read(r, binary.BigEndian, &galCount); err != nil {
		return nil, fmt.Errorf("heparams: reading galois key count: %w", err)
	}
	galKeys := make([]*rlwe.GaloisKey, galCount)
	for i := range galKeys {
		gkBytes, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("heparams: reading galois key %d: %w", i, err)
		}
		gk := new(rlwe.GaloisKey)
		if err := gk.UnmarshalBinary(gkBytes); err != nil {
			return nil, fmt.Errorf("heparams: unmarshaling galois key %d: %w", i, err)
		}
		galKeys[i] = gk
	}

	return &Context{
		Params:     params,
		PublicKey:  pk,
		SecretKey:  sk,
		RelinKey:   rlk,
		GaloisKeys: galKeys,
	}, nil
}
