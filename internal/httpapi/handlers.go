package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/inference"
)

// MaxCiphertextSize bounds an incoming ciphertext/context upload, following
// backend/main.go's MaxCiphertextSize (10MB) structural check — this is not
// a defense against a malicious client beyond the structural checks spec.md
// §1 scopes this repo to.
const MaxCiphertextSize = 10 * 1024 * 1024

type registerKeyRequest struct {
	KeyID          string `json:"key_id"`
	EvalContextB64 string `json:"eval_context_b64"`
}

type registerKeyResponse struct {
	Status string `json:"status"`
	KeyID  string `json:"key_id"`
}

// analyzeRequest mirrors spec.md §6.2's documented wire contract for
// POST /emotion/analyze-today, confirmed by
// original_source/backend/app/schemas/emotion.py's EncryptedImageRequest:
// Date is optional and, when present, pins the (user_id, date) row the
// result is upserted under instead of defaulting to today.
type analyzeRequest struct {
	KeyID      string `json:"key_id"`
	Ciphertext string `json:"ciphertext"`
	Date       string `json:"date,omitempty"`
}

// analyzeResponse mirrors original_source/backend/app/schemas/emotion.py's
// EncryptedPredictionResponse (ciphertext, date).
type analyzeResponse struct {
	Ciphertext string `json:"ciphertext"`
	Date       string `json:"date"`
}

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleRegisterKey(w http.ResponseWriter, r *http.Request) {
	var req registerKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", inference.ErrBadCiphertext, err))
		return
	}
	if req.KeyID == "" {
		writeError(w, fmt.Errorf("%w: key_id is required", inference.ErrBadCiphertext))
		return
	}
	if len(req.EvalContextB64) > MaxCiphertextSize {
		writeError(w, fmt.Errorf("%w: evaluation context exceeds maximum size", inference.ErrBadCiphertext))
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.EvalContextB64)
	if err != nil {
		writeError(w, fmt.Errorf("%w: decoding evaluation context: %v", inference.ErrBadCiphertext, err))
		return
	}

	ctx, err := heparams.UnmarshalBinary(s.Params, data)
	if err != nil {
		writeError(w, fmt.Errorf("%w: unmarshaling evaluation context: %v", inference.ErrBadCiphertext, err))
		return
	}

	if err := s.Registry.Register(req.KeyID, ctx); err != nil {
		writeErrorWithKey(w, err, req.KeyID)
		return
	}

	log.Printf("httpapi: registered evaluation context for key_id %s", req.KeyID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(registerKeyResponse{Status: "ok", KeyID: req.KeyID})
}

func (s *Server) handleAnalyzeToday(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		writeError(w, inference.ErrOverloaded)
		return
	}
	defer s.release()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", inference.ErrBadCiphertext, err))
		return
	}
	if len(req.Ciphertext) > MaxCiphertextSize {
		writeError(w, fmt.Errorf("%w: ciphertext exceeds maximum size", inference.ErrBadCiphertext))
		return
	}

	predictionDate := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, fmt.Errorf("%w: date must be YYYY-MM-DD: %v", inference.ErrBadCiphertext, err))
			return
		}
		predictionDate = parsed
	}

	userID, err := s.Auth.Authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if s.Model == nil {
		writeError(w, inference.ErrModelUnavailable)
		return
	}

	evalCtx, err := s.Registry.Lookup(req.KeyID)
	if err != nil {
		writeErrorWithKey(w, err, req.KeyID)
		return
	}

	ctBytes, err := base64.StdEncoding.DecodeString(req.Ciphertext)
	if err != nil {
		writeError(w, fmt.Errorf("%w: decoding ciphertext: %v", inference.ErrBadCiphertext, err))
		return
	}
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(ctBytes); err != nil {
		writeError(w, fmt.Errorf("%w: unmarshaling ciphertext: %v", inference.ErrBadCiphertext, err))
		return
	}
	if ct.Level() < 0 || ct.Level() > s.Params.MaxLevel() {
		writeError(w, fmt.Errorf("%w: ciphertext level %d out of range", inference.ErrBadCiphertext, ct.Level()))
		return
	}

	engine, err := inference.NewPackedEngine(s.Params, evalCtx.EvaluationKeySet(), s.Model)
	if err != nil {
		writeErrorWithKey(w, err, req.KeyID)
		return
	}

	reqCtx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	result, err := engine.Forward(reqCtx, ct)
	if err != nil {
		writeErrorWithKey(w, err, req.KeyID)
		return
	}

	if s.Store != nil {
		if err := s.Store.UpsertPrediction(reqCtx, userID, predictionDate, result); err != nil {
			log.Printf("httpapi: failed to persist prediction for %s: %v", userID, err)
		}
	}

	resultBytes, err := result.MarshalBinary()
	if err != nil {
		writeErrorWithKey(w, fmt.Errorf("%w: marshaling result: %v", inference.ErrHEEvalFailure, err), req.KeyID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analyzeResponse{
		Ciphertext: base64.StdEncoding.EncodeToString(resultBytes),
		Date:       predictionDate.Format(dateLayout),
	})
}

// writeError maps an error-kind (spec.md §7) to an HTTP status. Call sites
// that know the request's key_id should use writeErrorWithKey instead, so a
// 500 is never logged without it.
func writeError(w http.ResponseWriter, err error) {
	writeErrorWithKey(w, err, "")
}

func writeErrorWithKey(w http.ResponseWriter, err error, keyID string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, inference.ErrUnknownKey):
		status = http.StatusNotFound
	case errors.Is(err, inference.ErrBadCiphertext):
		status = http.StatusBadRequest
	case errors.Is(err, inference.ErrShapeMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, inference.ErrOverloaded):
		status = http.StatusTooManyRequests
	case errors.Is(err, inference.ErrModelUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, inference.ErrHEEvalFailure):
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		log.Printf("httpapi: internal error (key_id=%q): %v", keyID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
