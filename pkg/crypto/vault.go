// Package crypto implements the symmetric vault that protects secret values
// at rest. One 256-bit AES-GCM key is resolved at startup; every encryption
// draws a fresh 96-bit nonce which is prepended to the sealed blob.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	keyLength   = 32
	nonceLength = 12
)

// Error marks fatal vault failures: key misconfiguration or an
// authentication failure on decrypt. It is never swallowed by callers.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("crypto: %s", e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

type Vault struct {
	aead cipher.AEAD
}

// NewVault builds a vault from a base64 encoded 32-byte key. Both standard
// and URL-safe encodings are accepted. Any other input is a configuration
// error and the process should not start.
func NewVault(encodedKey string) (*Vault, error) {
	if encodedKey == "" {
		return nil, &Error{Op: "encryption key is not configured"}
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(encodedKey)
	}
	if err != nil {
		return nil, &Error{Op: "decode encryption key", Err: err}
	}
	if len(key) != keyLength {
		return nil, &Error{Op: fmt.Sprintf("encryption key must be %d bytes, got %d", keyLength, len(key))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Op: "init cipher", Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &Error{Op: "init gcm", Err: err}
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals a plaintext value. The returned blob is nonce || ciphertext+tag.
func (v *Vault) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, &Error{Op: "generate nonce", Err: err}
	}
	return v.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt. A corrupted blob or a blob sealed
// under a different key fails authentication and surfaces as *Error.
func (v *Vault) Decrypt(blob []byte) (string, error) {
	if len(blob) < nonceLength {
		return "", &Error{Op: "blob too short to contain nonce"}
	}
	nonce, ciphertext := blob[:nonceLength], blob[nonceLength:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &Error{Op: "authenticate ciphertext", Err: err}
	}
	return string(plaintext), nil
}
