// Package heparams builds the CKKS parameter set and key bundles shared by
// the client and the server. Both sides must derive parameters from the
// same literal or ciphertexts produced by one will not evaluate correctly
// against keys generated by the other.
package heparams

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// Literal is the single parameter set this repository supports. N=32768
// (LogN=15), an 8-prime ciphertext modulus chain (31, six times 26, 31 bits)
// giving a maximum level of 7 (the key-switching primes live separately in
// LogP), and a global scale of 2^26 — enough headroom for the fixed
// conv -> square -> fc -> square -> fc graph (depth 5, see
// internal/inference) plus two levels of slack.
var Literal = ckks.ParametersLiteral{
	LogN:            15,
	LogQ:            []int{31, 26, 26, 26, 26, 26, 26, 31},
	LogP:            []int{31, 31},
	LogDefaultScale: 26,
}

// New constructs the parameter set. Both client and server call this with
// the same Literal; there is no per-deployment tuning knob on purpose, since
// a mismatched parameter set produces ciphertexts the other side cannot read.
func New() (ckks.Parameters, error) {
	params, err := ckks.NewParametersFromLiteral(Literal)
	if err != nil {
		return ckks.Parameters{}, fmt.Errorf("heparams: building CKKS parameters: %w", err)
	}
	return params, nil
}

// MaxDepth is the number of multiplicative levels New's parameters support.
func MaxDepth(params ckks.Parameters) int {
	return params.MaxLevel()
}
