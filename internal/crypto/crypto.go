package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize         = 16            // Salt size in bytes
	KeySize          = 32            // AES-256 key size
	BlockSize        = aes.BlockSize // CBC IV size
	NonceSize        = 12            // GCM nonce size
	TagSize          = 16            // GCM authentication tag size
	LegacyIterations = 10000         // PBKDF2 iterations for unversioned envelopes, never change
)

var (
	ErrEncryption        = errors.New("encryption failed")
	ErrDecryption        = errors.New("decryption failed")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrInvalidPadding    = errors.New("invalid padding")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrInvalidKeyLength  = errors.New("invalid key length")
	ErrInvalidIterations = errors.New("invalid iteration count")
)

// KDF handles key derivation from passwords
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: LegacyIterations,
	}, nil
}

// DeriveKey derives a keyLen-byte key from a password
func (k *KDF) DeriveKey(password []byte, keyLen int) ([]byte, error) {
	if keyLen <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeyLength, keyLen)
	}
	if k.Iterations <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterations, k.Iterations)
	}
	return pbkdf2.Key(password, k.Salt, k.Iterations, keyLen, sha256.New), nil
}

// DeriveKey derives a key with PBKDF2-HMAC-SHA256 at the legacy iteration count.
func DeriveKey(password, salt []byte, keyLen int) ([]byte, error) {
	kdf := &KDF{Salt: salt, Iterations: LegacyIterations}
	return kdf.DeriveKey(password, keyLen)
}

// Encryptor provides authenticated encryption
type Encryptor struct {
	key []byte
}

// NewEncryptor creates a new encryptor with the given key
func NewEncryptor(key []byte) *Encryptor {
	return &Encryptor{
		key: key,
	}
}

// Encrypt seals plaintext with AES-256-GCM and returns nonce || ciphertext || tag
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, NonceSize+len(ciphertext))
	copy(result, nonce)
	copy(result[NonceSize:], ciphertext)

	return result, nil
}

// Decrypt opens data produced by Encrypt
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrMalformedEnvelope
	}

	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[:NonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

func (e *Encryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Destroy clears the encryptor's key from memory
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
