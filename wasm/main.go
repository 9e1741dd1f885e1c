//go:build js && wasm

// Command wasm exposes the client-side CKKS operations to a browser via
// syscall/js: key generation, the im2col-encoded image encryption the
// emotion inference server expects, and decryption of the returned logits.
// Structure and wrapper style are carried over from the teacher's
// wasm/main.go (Promise-returning wrappers around Lattigo calls); the
// parameters and the two new image-specific wrappers are this repo's.
package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/z3rotig4r/emotion-fhe/internal/codec"
	"github.com/z3rotig4r/emotion-fhe/internal/heparams"
	"github.com/z3rotig4r/emotion-fhe/internal/inference"
	"github.com/z3rotig4r/emotion-fhe/internal/weights"
)

// requiredRotationSteps is the single source of truth for which Galois
// keys the forward graph needs, shared with the server side so client and
// server never drift apart on rotation amounts.
func requiredRotationSteps() []int {
	return inference.RotationSteps()
}

var (
	params  ckks.Parameters
	encoder *ckks.Encoder // encoder is stateless w.r.t. keys, safe to keep cached across calls
)

func init() {
	var err error
	params, err = heparams.New()
	if err != nil {
		panic(fmt.Sprintf("Failed to create CKKS parameters: %v", err))
	}
	encoder = ckks.NewEncoder(params)
}

// keygenWrapper generates a secret/public key pair.
func keygenWrapper(this js.Value, args []js.Value) interface{} {
	handler := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve := args[0]
		reject := args[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					errorObject := js.Global().Get("Error").New(fmt.Sprintf("Keygen failed: %v", r))
					reject.Invoke(errorObject)
				}
			}()

			kgen := ckks.NewKeyGenerator(params)
			sk := kgen.GenSecretKeyNew()
			pk := kgen.GenPublicKeyNew(sk)

			skBytes, err := sk.MarshalBinary()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal secret key: %v", err)))
				return
			}
			pkBytes, err := pk.MarshalBinary()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal public key: %v", err)))
				return
			}

			skArray := js.Global().Get("Uint8Array").New(len(skBytes))
			js.CopyBytesToJS(skArray, skBytes)
			pkArray := js.Global().Get("Uint8Array").New(len(pkBytes))
			js.CopyBytesToJS(pkArray, pkBytes)

			result := js.Global().Get("Object").New()
			result.Set("secretKey", skArray)
			result.Set("publicKey", pkArray)
			resolve.Invoke(result)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

// genRelinearizationKeyWrapper generates the relinearization key a secret
// key needs before the server can evaluate ciphertext-ciphertext products
// (the two Square layers).
func genRelinearizationKeyWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return js.Global().Get("Error").New("genRelinearizationKey requires 1 argument: secretKey (Uint8Array)")
	}
	skArray := args[0]

	handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
		resolve := promiseArgs[0]
		reject := promiseArgs[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("GenRelinearizationKey failed: %v", r)))
				}
			}()

			skBytes := make([]byte, skArray.Get("length").Int())
			js.CopyBytesToGo(skBytes, skArray)

			sk := &rlwe.SecretKey{}
			if err := sk.UnmarshalBinary(skBytes); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to unmarshal secret key: %v", err)))
				return
			}

			kgen := ckks.NewKeyGenerator(params)
			rlk := kgen.GenRelinearizationKeyNew(sk)

			rlkBytes, err := rlk.MarshalBinary()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal relinearization key: %v", err)))
				return
			}

			rlkArray := js.Global().Get("Uint8Array").New(len(rlkBytes))
			js.CopyBytesToJS(rlkArray, rlkBytes)
			resolve.Invoke(rlkArray)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

// genGaloisKeysWrapper generates Galois keys for the given elements, or for
// a default power-of-two rotation set if none are given.
func genGaloisKeysWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.Global().Get("Error").New("genGaloisKeys requires at least 1 argument: secretKey (Uint8Array), optional: galoisElements (Array)")
	}

	skArray := args[0]
	var galoisElements []uint64
	if len(args) > 1 && !args[1].IsUndefined() && !args[1].IsNull() {
		galElsJS := args[1]
		length := galElsJS.Length()
		galoisElements = make([]uint64, length)
		for i := 0; i < length; i++ {
			galoisElements[i] = uint64(galElsJS.Index(i).Int())
		}
	}

	handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
		resolve := promiseArgs[0]
		reject := promiseArgs[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("GenGaloisKeys failed: %v", r)))
				}
			}()

			skBytes := make([]byte, skArray.Get("length").Int())
			js.CopyBytesToGo(skBytes, skArray)

			sk := &rlwe.SecretKey{}
			if err := sk.UnmarshalBinary(skBytes); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to unmarshal secret key: %v", err)))
				return
			}

			kgen := ckks.NewKeyGenerator(params)
			if len(galoisElements) == 0 {
				logSlots := params.LogMaxSlots()
				for i := 0; i < logSlots; i++ {
					galoisElements = append(galoisElements, params.GaloisElement(1<<i))
					galoisElements = append(galoisElements, params.GaloisElement(-(1 << i)))
				}
			}
			gks := kgen.GenGaloisKeysNew(galoisElements, sk)

			result := js.Global().Get("Array").New()
			for _, gk := range gks {
				gkBytes, err := gk.MarshalBinary()
				if err != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal Galois key: %v", err)))
					return
				}
				gkArray := js.Global().Get("Uint8Array").New(len(gkBytes))
				js.CopyBytesToJS(gkArray, gkBytes)
				result.Call("push", gkArray)
			}

			resolve.Invoke(result)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

// genRotationKeysWrapper generates Galois keys for an explicit list of
// rotation steps. Passing internal/inference's RotationSteps() (via the
// companion fheGetRequiredRotations below) produces exactly the keys the
// server's forward graph needs.
func genRotationKeysWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return js.Global().Get("Error").New("genRotationKeys requires 2 arguments: secretKey (Uint8Array), rotations (Array of numbers)")
	}

	skArray := args[0]
	rotationsJS := args[1]
	length := rotationsJS.Length()
	rotations := make([]int, length)
	for i := 0; i < length; i++ {
		rotations[i] = rotationsJS.Index(i).Int()
	}

	handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
		resolve := promiseArgs[0]
		reject := promiseArgs[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("GenRotationKeys failed: %v", r)))
				}
			}()

			skBytes := make([]byte, skArray.Get("length").Int())
			js.CopyBytesToGo(skBytes, skArray)

			sk := &rlwe.SecretKey{}
			if err := sk.UnmarshalBinary(skBytes); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to unmarshal secret key: %v", err)))
				return
			}

			galoisElements := make([]uint64, len(rotations))
			for i, rot := range rotations {
				galoisElements[i] = params.GaloisElement(rot)
			}

			kgen := ckks.NewKeyGenerator(params)
			rotKeys := kgen.GenGaloisKeysNew(galoisElements, sk)

			result := js.Global().Get("Array").New()
			for _, rk := range rotKeys {
				rkBytes, err := rk.MarshalBinary()
				if err != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal rotation key: %v", err)))
					return
				}
				rkArray := js.Global().Get("Uint8Array").New(len(rkBytes))
				js.CopyBytesToJS(rkArray, rkBytes)
				result.Call("push", rkArray)
			}

			resolve.Invoke(result)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

// genAllKeysWrapper generates a full keypair plus relinearization and
// Galois keys in one call, used by the enrollment flow so the browser does
// not need five separate round trips.
func genAllKeysWrapper(this js.Value, args []js.Value) interface{} {
	handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
		resolve := promiseArgs[0]
		reject := promiseArgs[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("GenAllKeys failed: %v", r)))
				}
			}()

			kgen := ckks.NewKeyGenerator(params)
			sk := kgen.GenSecretKeyNew()
			pk := kgen.GenPublicKeyNew(sk)
			rlk := kgen.GenRelinearizationKeyNew(sk)

			galEls := make([]uint64, 0)
			for _, step := range requiredRotationSteps() {
				galEls = append(galEls, params.GaloisElement(step))
			}
			gks := kgen.GenGaloisKeysNew(galEls, sk)

			skBytes, _ := sk.MarshalBinary()
			pkBytes, _ := pk.MarshalBinary()
			rlkBytes, _ := rlk.MarshalBinary()

			skArray := js.Global().Get("Uint8Array").New(len(skBytes))
			js.CopyBytesToJS(skArray, skBytes)
			pkArray := js.Global().Get("Uint8Array").New(len(pkBytes))
			js.CopyBytesToJS(pkArray, pkBytes)
			rlkArray := js.Global().Get("Uint8Array").New(len(rlkBytes))
			js.CopyBytesToJS(rlkArray, rlkBytes)

			gksArrayJS := js.Global().Get("Array").New()
			for _, gk := range gks {
				gkBytes, _ := gk.MarshalBinary()
				gkArray := js.Global().Get("Uint8Array").New(len(gkBytes))
				js.CopyBytesToJS(gkArray, gkBytes)
				gksArrayJS.Call("push", gkArray)
			}

			result := js.Global().Get("Object").New()
			result.Set("secretKey", skArray)
			result.Set("publicKey", pkArray)
			result.Set("relinearizationKey", rlkArray)
			result.Set("galoisKeys", gksArrayJS)
			resolve.Invoke(result)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

// encryptImageWrapper encodes a 48x48 image into the im2col layout and
// encrypts it, returning the ciphertext the server's
// /emotion/analyze-today endpoint expects.
func encryptImageWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return js.Global().Get("Error").New("encryptImage requires 2 arguments: publicKey (Uint8Array), image (Array of 48 Arrays of 48 numbers)")
	}

	pkArray := args[0]
	imageJS := args[1]

	handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
		resolve := promiseArgs[0]
		reject := promiseArgs[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("EncryptImage failed: %v", r)))
				}
			}()

			pkBytes := make([]byte, pkArray.Get("length").Int())
			js.CopyBytesToGo(pkBytes, pkArray)
			pk := &rlwe.PublicKey{}
			if err := pk.UnmarshalBinary(pkBytes); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to unmarshal public key: %v", err)))
				return
			}

			image := make([][]float64, imageJS.Length())
			for y := range image {
				row := imageJS.Index(y)
				pixels := make([]float64, row.Length())
				for x := range pixels {
					pixels[x] = row.Index(x).Float()
				}
				image[y] = pixels
			}

			values, err := codec.EncodeIm2Col(image)
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to encode image: %v", err)))
				return
			}

			cvals := make([]complex128, params.MaxSlots())
			for i, v := range values {
				cvals[i] = complex(v, 0)
			}
			pt := ckks.NewPlaintext(params, params.MaxLevel())
			if err := encoder.Encode(cvals, pt); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to encode plaintext: %v", err)))
				return
			}

			encryptor := ckks.NewEncryptor(params, pk)
			ct, err := encryptor.EncryptNew(pt)
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to encrypt: %v", err)))
				return
			}

			ctBytes, err := ct.MarshalBinary()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal ciphertext: %v", err)))
				return
			}

			ctArray := js.Global().Get("Uint8Array").New(len(ctBytes))
			js.CopyBytesToJS(ctArray, ctBytes)
			resolve.Invoke(ctArray)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

// decryptLogitsWrapper decrypts a result ciphertext and returns the
// weights.FC2Out emotion logits as a JavaScript array of numbers.
func decryptLogitsWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return js.Global().Get("Error").New("decryptLogits requires 2 arguments: secretKey (Uint8Array), ciphertext (Uint8Array)")
	}

	skArray := args[0]
	ctArray := args[1]

	handler := js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
		resolve := promiseArgs[0]
		reject := promiseArgs[1]

		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("DecryptLogits failed: %v", r)))
				}
			}()

			skBytes := make([]byte, skArray.Get("length").Int())
			js.CopyBytesToGo(skBytes, skArray)
			sk := &rlwe.SecretKey{}
			if err := sk.UnmarshalBinary(skBytes); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to unmarshal secret key: %v", err)))
				return
			}

			ctBytes := make([]byte, ctArray.Get("length").Int())
			js.CopyBytesToGo(ctBytes, ctArray)
			ct := new(rlwe.Ciphertext)
			if err := ct.UnmarshalBinary(ctBytes); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to unmarshal ciphertext: %v", err)))
				return
			}

			decryptor := ckks.NewDecryptor(params, sk)
			pt := decryptor.DecryptNew(ct)

			cvals := make([]complex128, params.MaxSlots())
			if err := encoder.Decode(pt, cvals); err != nil {
				reject.Invoke(js.Global().Get("Error").New(fmt.Sprintf("Failed to decode plaintext: %v", err)))
				return
			}

			result := js.Global().Get("Array").New()
			for i := 0; i < weights.FC2Out; i++ {
				result.Call("push", js.ValueOf(real(cvals[i])))
			}
			resolve.Invoke(result)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(handler)
}

// getParamsInfo returns the active CKKS parameters as a JSON string.
func getParamsInfo(this js.Value, args []js.Value) interface{} {
	info := map[string]interface{}{
		"LogN":         params.LogN(),
		"LogQ":         params.LogQ(),
		"LogP":         params.LogP(),
		"MaxLevel":     params.MaxLevel(),
		"MaxSlots":     params.MaxSlots(),
		"DefaultScale": params.DefaultScale().Float64(),
		"RingType":     params.RingType().String(),
	}

	jsonBytes, err := json.Marshal(info)
	if err != nil {
		return js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal params info: %v", err))
	}
	return js.ValueOf(string(jsonBytes))
}

// getRequiredRotations returns the rotation steps the forward graph needs,
// as a JSON array, so the browser can request exactly those Galois keys.
func getRequiredRotations(this js.Value, args []js.Value) interface{} {
	jsonBytes, err := json.Marshal(requiredRotationSteps())
	if err != nil {
		return js.Global().Get("Error").New(fmt.Sprintf("Failed to marshal rotation steps: %v", err))
	}
	return js.ValueOf(string(jsonBytes))
}

func main() {
	fmt.Println("Lattigo CKKS Wasm module initialized")
	fmt.Printf("Parameters: LogN=%d, LogQ=%v, MaxLevel=%d, MaxSlots=%d\n",
		params.LogN(), params.LogQ(), params.MaxLevel(), params.MaxSlots())

	js.Global().Set("fheKeygen", js.FuncOf(keygenWrapper))
	js.Global().Set("fheEncryptImage", js.FuncOf(encryptImageWrapper))
	js.Global().Set("fheDecryptLogits", js.FuncOf(decryptLogitsWrapper))
	js.Global().Set("fheGetParamsInfo", js.FuncOf(getParamsInfo))
	js.Global().Set("fheGetRequiredRotations", js.FuncOf(getRequiredRotations))

	js.Global().Set("fheGenRelinearizationKey", js.FuncOf(genRelinearizationKeyWrapper))
	js.Global().Set("fheGenGaloisKeys", js.FuncOf(genGaloisKeysWrapper))
	js.Global().Set("fheGenRotationKeys", js.FuncOf(genRotationKeysWrapper))
	js.Global().Set("fheGenAllKeys", js.FuncOf(genAllKeysWrapper))

	fmt.Println("FHE functions exposed to JavaScript:")
	fmt.Println("  - fheKeygen()")
	fmt.Println("  - fheEncryptImage(publicKey, image48x48)")
	fmt.Println("  - fheDecryptLogits(secretKey, ciphertext)")
	fmt.Println("  - fheGetParamsInfo()")
	fmt.Println("  - fheGetRequiredRotations()")
	fmt.Println("  - fheGenRelinearizationKey(secretKey)")
	fmt.Println("  - fheGenGaloisKeys(secretKey, [galoisElements])")
	fmt.Println("  - fheGenRotationKeys(secretKey, [rotations])")
	fmt.Println("  - fheGenAllKeys()")

	select {}
}
