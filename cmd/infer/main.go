// Command infer encrypts a 48x48 image, sends it to a running server's
// /emotion/analyze-today endpoint, and decrypts the returned logits.
// The image is read as a JSON 48x48 array of floats in [0, 1] (pixel
// decoding from an actual image format is left to a real client, matching
// spec.md's client-side scope; original_source's client is a Streamlit app
// that already has that pipeline).
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/z3rotig4r/emotion-fhe/internal/clientkeys"
	"github.com/z3rotig4r/emotion-fhe/internal/codec"
)

func main() {
	dir := flag.String("dir", "./data/client", "directory holding this client's key material")
	serverURL := flag.String("server", "http://localhost:8080", "base URL of the inference server")
	imagePath := flag.String("image", "", "path to a JSON file containing a 48x48 array of floats")
	token := flag.String("token", os.Getenv("AUTH_TOKEN"), "bearer token for the server")
	flag.Parse()

	if *imagePath == "" {
		log.Fatal("infer: -image is required")
	}

	mgr, err := clientkeys.NewManager(*dir)
	if err != nil {
		log.Fatalf("infer: %v", err)
	}
	clientCtx, keyID, err := mgr.EnsureKeypair()
	if err != nil {
		log.Fatalf("infer: loading keypair: %v", err)
	}

	image, err := loadImage(*imagePath)
	if err != nil {
		log.Fatalf("infer: %v", err)
	}

	ct, err := codec.Encrypt(clientCtx, image)
	if err != nil {
		log.Fatalf("infer: encrypting image: %v", err)
	}
	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		log.Fatalf("infer: marshaling ciphertext: %v", err)
	}

	body, err := json.Marshal(map[string]string{
		"key_id":     keyID,
		"ciphertext": base64.StdEncoding.EncodeToString(ctBytes),
	})
	if err != nil {
		log.Fatalf("infer: marshaling request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, *serverURL+"/emotion/analyze-today", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("infer: building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("infer: calling server: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("infer: reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("infer: server returned %s: %s", resp.Status, respBody)
	}

	var result struct {
		Ciphertext string `json:"ciphertext"`
		Date       string `json:"date"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		log.Fatalf("infer: parsing response: %v", err)
	}

	resultBytes, err := base64.StdEncoding.DecodeString(result.Ciphertext)
	if err != nil {
		log.Fatalf("infer: decoding result ciphertext: %v", err)
	}
	resultCt := new(rlwe.Ciphertext)
	if err := resultCt.UnmarshalBinary(resultBytes); err != nil {
		log.Fatalf("infer: unmarshaling result ciphertext: %v", err)
	}

	logits, err := codec.DecodeLogits(clientCtx, resultCt)
	if err != nil {
		log.Fatalf("infer: decrypting logits: %v", err)
	}

	fmt.Printf("emotion logits for %s: %v\n", result.Date, logits)
}

func loadImage(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var image [][]float64
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return image, nil
}
