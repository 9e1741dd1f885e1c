package inference

import "errors"

// Kind identifies one of the error categories from the error-handling design
// (spec.md §7). Handlers compare against these with errors.Is rather than
// string-matching, and internal/httpapi maps each one to an HTTP status.
type Kind error

var (
	// ErrUnknownKey: the request's key_id has no registered evaluation
	// context, neither cached nor on disk.
	ErrUnknownKey Kind = errors.New("inference: unknown key_id")

	// ErrBadCiphertext: the ciphertext failed to decode or unmarshal, or its
	// level is outside the parameter set's range.
	ErrBadCiphertext Kind = errors.New("inference: malformed ciphertext")

	// ErrShapeMismatch: a decoded tensor (weights, im2col layout) does not
	// match the fixed topology's expected dimensions.
	ErrShapeMismatch Kind = errors.New("inference: shape mismatch")

	// ErrHEEvalFailure: a homomorphic operation (multiply, rescale,
	// rotate, relinearize) returned an error mid-graph, most often a
	// level exhausted before the graph finished.
	ErrHEEvalFailure Kind = errors.New("inference: homomorphic evaluation failed")

	// ErrOverloaded: the server could not admit the request within the
	// worker pool's admission window.
	ErrOverloaded Kind = errors.New("inference: server overloaded")

	// ErrModelUnavailable: the weight artifact failed to load at startup
	// or was not yet loaded when a request arrived.
	ErrModelUnavailable Kind = errors.New("inference: model unavailable")
)
