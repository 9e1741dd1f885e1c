// Command server runs the encrypted inference HTTP API: /he/register-key
// and /emotion/analyze-today.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/z3rotig4r/emotion-fhe/internal/auth"
	"github.com/z3rotig4r/emotion-fhe/internal/config"
	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/httpapi"
	"github.com/z3rotig4r/emotion-fhe/internal/registry"
	"github.com/z3rotig4r/emotion-fhe/internal/store"
	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

func main() {
	cfg := config.Load()

	params, err := heparams.New()
	if err != nil {
		log.Fatalf("server: building CKKS parameters: %v", err)
	}

	reg, err := registry.New(params, cfg.ContextDir)
	if err != nil {
		log.Fatalf("server: initializing evaluation-context registry: %v", err)
	}

	model, err := weights.Load(cfg.ModelPath)
	if err != nil {
		log.Fatalf("server: loading model weights from %s: %v", cfg.ModelPath, err)
	}

	var predictionStore *store.PredictionStore
	if cfg.DBDSN != "" {
		predictionStore, err = store.Open(cfg.DBDSN)
		if err != nil {
			log.Fatalf("server: connecting to database: %v", err)
		}
		defer predictionStore.Close()

		if err := predictionStore.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("server: ensuring prediction schema: %v", err)
		}
		log.Println("server: connected to prediction database")
	} else {
		log.Println("server: DB_DSN not set, predictions will not be persisted")
	}

	authenticator := auth.NewBearerAuthenticator(loadTokens())

	srv := httpapi.NewServer(params, reg, model, authenticator, predictionStore, cfg.RequestTimeout, cfg.MaxInferenceWorkers)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("server: listening on %s (max_inference_workers=%d, request_timeout=%s)", addr, cfg.MaxInferenceWorkers, cfg.RequestTimeout)
	if err := srv.Serve(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// loadTokens reads a single shared bearer token from AUTH_TOKEN, mapping it
// to the user_id in AUTH_USER_ID. A real deployment swaps this for whatever
// account system it already runs.
func loadTokens() map[string]string {
	token := os.Getenv("AUTH_TOKEN")
	userID := os.Getenv("AUTH_USER_ID")
	if token == "" || userID == "" {
		return map[string]string{}
	}
	return map[string]string{token: userID}
}
