// Command enroll generates a client keypair, persists it under -dir, and
// registers the derived evaluation context with a running server's
// /he/register-key endpoint. This is the CLI equivalent of
// original_source/client/streamlit_app/fhe_keys.py's key generation flow.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/z3rotig4r/emotion-fhe/internal/clientkeys"
)

func main() {
	dir := flag.String("dir", "./data/client", "directory to store key material in")
	serverURL := flag.String("server", "http://localhost:8080", "base URL of the inference server")
	flag.Parse()

	mgr, err := clientkeys.NewManager(*dir)
	if err != nil {
		log.Fatalf("enroll: %v", err)
	}

	keyID, err := mgr.Generate()
	if err != nil {
		log.Fatalf("enroll: generating keypair: %v", err)
	}
	log.Printf("enroll: generated keypair, key_id=%s", keyID)

	evalCtx, err := mgr.LoadEvalContext()
	if err != nil {
		log.Fatalf("enroll: %v", err)
	}
	evalBytes, err := evalCtx.MarshalBinary()
	if err != nil {
		log.Fatalf("enroll: marshaling evaluation context: %v", err)
	}

	body, err := json.Marshal(map[string]string{
		"key_id":           keyID,
		"eval_context_b64": base64.StdEncoding.EncodeToString(evalBytes),
	})
	if err != nil {
		log.Fatalf("enroll: marshaling request: %v", err)
	}

	resp, err := http.Post(*serverURL+"/he/register-key", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("enroll: registering key with server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("enroll: server rejected registration: %s", resp.Status)
	}

	fmt.Printf("enrolled key_id=%s with %s\n", keyID, *serverURL)
}
