// Package cryptox holds the symmetric primitives used by the client for
// end-to-end encryption of manifests and blocks, plus small hashing helpers
// shared with the server.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"errors"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the size of every secret key handled here (AES-256).
const KeySize = 32

// ErrCiphertextTooShort is returned by Open when the input cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveMasterKey stretches a password into a KeySize key with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier derives a value that proves knowledge of key without
// revealing it. Stored next to the salt to check a password offline.
func MakeVerifier(key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("gophvault/verifier"))
	return mac.Sum(nil)
}

// NewSecretKey returns a random KeySize key.
func NewSecretKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key. The random nonce is
// prepended to the returned ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(aesgcm.NonceSize())
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(key, sealed []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	ns := aesgcm.NonceSize()
	if len(sealed) < ns {
		return nil, ErrCiphertextTooShort
	}
	return aesgcm.Open(nil, sealed[:ns], sealed[ns:], nil)
}

// EncryptBlock seals data under a fresh random key and returns both.
// Each block gets its own key; the key travels inside the file manifest.
func EncryptBlock(data []byte) (ciphertext, key []byte, err error) {
	key = NewSecretKey()
	ciphertext, err = Seal(key, data)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, key, nil
}

// CertificateSHA1 is the lookup hash of a DER-encoded certificate.
func CertificateSHA1(der []byte) []byte {
	sum := sha1.Sum(der)
	return sum[:]
}
