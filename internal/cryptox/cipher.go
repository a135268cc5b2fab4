// Package cryptox implements the at-rest record cipher: JSON-serializable
// records are encrypted with AES-256-CBC under a process-wide shared secret
// and rendered as an opaque "hex(iv):base64(ciphertext)" token.
//
// The ciphertext carries no authentication tag, so tampering is not
// detectable. The wire format is contractual; do not change it without a
// data migration.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bloomweaver/backend/internal/common"
)

// KeyEnvVar names the environment variable holding the shared secret.
// The secret is read on every call, not cached, so it can be rotated
// without a restart.
const KeyEnvVar = "ENCRYPTION_KEY"

const ivSize = aes.BlockSize

// encryptionKey returns the first 32 bytes of the configured secret.
func encryptionKey() ([]byte, error) {
	secret := os.Getenv(KeyEnvVar)
	if secret == "" {
		return nil, common.ErrorMissingKey
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: secret shorter than 32 bytes", common.ErrorMissingKey)
	}
	return []byte(secret[:32]), nil
}

// Encrypt serializes v to JSON and encrypts it with AES-256-CBC under a
// fresh random 16-byte IV. The IV is never reused; under a fixed key, reuse
// would leak equality of plaintext prefixes.
//
// Returns the blob as "hex(iv):base64(ciphertext)".
func Encrypt(v any) (string, error) {
	key, err := encryptionKey()
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialization error: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("iv generation error: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, unmarshalling the recovered JSON into v.
//
// Error classes are distinct: common.ErrorMissingKey when the secret is
// unset, common.ErrorMalformedBlob when the input is not exactly two
// colon-separated parts (or the IV is not valid hex of block length), and
// common.ErrorDecrypt for everything cryptographic (wrong key, corrupted
// or truncated ciphertext, non-JSON plaintext). v is never partially
// populated on failure.
func Decrypt(blob string, v any) error {
	key, err := encryptionKey()
	if err != nil {
		return err
	}

	parts := strings.Split(blob, ":")
	if len(parts) != 2 {
		return common.ErrorMalformedBlob
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return fmt.Errorf("%w: bad iv", common.ErrorMalformedBlob)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: bad ciphertext encoding", common.ErrorDecrypt)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: truncated ciphertext", common.ErrorDecrypt)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorDecrypt, err)
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: plaintext is not valid JSON", common.ErrorDecrypt)
	}

	return nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
