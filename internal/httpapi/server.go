// Package httpapi wires the two endpoints from spec.md §6.2 onto
// gorilla/mux, following the teacher's backend/main.go
// (mux.NewRouter()/enableCORS/TLS-toggle-by-file-existence) and
// cmd/server/main.go's endpoint registration shape.
package httpapi

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/z3rotig4r/emotion-fhe/internal/auth"
	"github.com/z3rotig4r/emotion-fhe/internal/registry"
	"github.com/z3rotig4r/emotion-fhe/internal/store"
	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

// Server holds everything the handlers need. It is constructed once at
// startup and passed explicitly; there is no package-level global state to
// look up.
type Server struct {
	Params         ckks.Parameters
	Registry       *registry.Registry
	Model          *weights.Model
	Auth           auth.Authenticator
	Store          *store.PredictionStore // may be nil: persistence is optional
	RequestTimeout time.Duration

	admission chan struct{}
}

// NewServer constructs a Server. maxWorkers sizes the admission-control
// semaphore described in spec.md §5.
func NewServer(params ckks.Parameters, reg *registry.Registry, model *weights.Model, authenticator auth.Authenticator, predictionStore *store.PredictionStore, requestTimeout time.Duration, maxWorkers int) *Server {
	return &Server{
		Params:         params,
		Registry:       reg,
		Model:          model,
		Auth:           authenticator,
		Store:          predictionStore,
		RequestTimeout: requestTimeout,
		admission:      make(chan struct{}, maxWorkers),
	}
}

// Router builds the mux.Router exposing /health, /he/register-key and
// /emotion/analyze-today.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/he/register-key", s.handleRegisterKey).Methods("POST", "OPTIONS")
	r.HandleFunc("/emotion/analyze-today", s.handleAnalyzeToday).Methods("POST", "OPTIONS")
	return enableCORS(r)
}

// Serve starts listening, choosing HTTPS over HTTP when server.crt and
// server.key are both present in the working directory, mirroring
// backend/main.go's toggle.
func (s *Server) Serve(addr string) error {
	handler := s.Router()

	certFile, keyFile := "server.crt", "server.key"
	if fileExists(certFile) && fileExists(keyFile) {
		log.Printf("httpapi: serving HTTPS on %s", addr)
		return http.ListenAndServeTLS(addr, certFile, keyFile, handler)
	}

	log.Printf("httpapi: no TLS certificate found, serving plain HTTP on %s", addr)
	return http.ListenAndServe(addr, handler)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// acquire blocks briefly trying to reserve an admission slot, returning
// false if none opened up within the admission window — the caller should
// then respond with ErrOverloaded (HTTP 429) rather than queue the request.
func (s *Server) acquire() bool {
	select {
	case s.admission <- struct{}{}:
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

func (s *Server) release() {
	<-s.admission
}
