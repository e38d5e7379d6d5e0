package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Format selects the envelope layout produced by Engine.Encrypt.
type Format int

const (
	// FormatCBC is the unversioned layout: base64(salt || iv || AES-256-CBC ciphertext).
	FormatCBC Format = iota
	// FormatGCM is the versioned layout: "v2$<iterations>$" + base64(salt || nonce || AES-256-GCM ciphertext).
	FormatGCM
)

const (
	DefaultIterations = 210000 // PBKDF2 iterations for v2 envelopes (OWASP minimum)

	versionTag = "v2"
	separator  = "$" // not part of the base64 alphabet
)

func (f Format) String() string {
	switch f {
	case FormatCBC:
		return "cbc"
	case FormatGCM:
		return "gcm"
	default:
		return "unknown"
	}
}

// ParseFormat maps a configuration value to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cbc", "legacy":
		return FormatCBC, nil
	case "gcm", "v2":
		return FormatGCM, nil
	default:
		return FormatCBC, fmt.Errorf("unknown envelope format %q", s)
	}
}

// DetectFormat reports the layout of an encoded envelope without decrypting it.
func DetectFormat(envelope string) Format {
	if strings.HasPrefix(envelope, versionTag+separator) {
		return FormatGCM
	}
	return FormatCBC
}

// Engine encrypts payloads into self-contained envelopes. The zero value
// writes unversioned CBC envelopes. Decrypt accepts every known format
// regardless of Format.
type Engine struct {
	Format     Format
	Iterations int // v2 only; zero means DefaultIterations
}

var defaultEngine = Engine{Format: FormatCBC}

// Encrypt encrypts plaintext into an unversioned CBC envelope.
func Encrypt(plaintext, password []byte) (string, error) {
	return defaultEngine.Encrypt(plaintext, password)
}

// Decrypt decrypts an envelope of any known format.
func Decrypt(envelope string, password []byte) ([]byte, error) {
	return defaultEngine.Decrypt(envelope, password)
}

// Encrypt encrypts plaintext with a key derived from password and a fresh salt.
func (e Engine) Encrypt(plaintext, password []byte) (string, error) {
	switch e.Format {
	case FormatCBC:
		return encryptCBC(plaintext, password)
	case FormatGCM:
		return encryptGCM(plaintext, password, e.iterations())
	default:
		return "", fmt.Errorf("%w: unsupported format %d", ErrEncryption, e.Format)
	}
}

// Decrypt reverses Encrypt. A wrong password surfaces as ErrDecryption.
func (e Engine) Decrypt(envelope string, password []byte) ([]byte, error) {
	envelope = strings.TrimSpace(envelope)
	if DetectFormat(envelope) == FormatGCM {
		return decryptGCM(envelope, password)
	}

	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrDecryption, ErrMalformedEnvelope, err)
	}
	return decryptCBC(raw, password)
}

func (e Engine) iterations() int {
	if e.Iterations > 0 {
		return e.Iterations
	}
	return DefaultIterations
}

func encryptCBC(plaintext, password []byte) (string, error) {
	kdf, err := NewKDF()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	key, err := kdf.DeriveKey(password, KeySize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	defer ClearBytes(key)

	iv, err := GenerateRandom(BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create cipher: %w", ErrEncryption, err)
	}

	padded := pkcs7Pad(plaintext, BlockSize)
	defer ClearBytes(padded)

	out := make([]byte, SaltSize+BlockSize+len(padded))
	copy(out, kdf.Salt)
	copy(out[SaltSize:], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[SaltSize+BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

func decryptCBC(raw, password []byte) ([]byte, error) {
	if len(raw) < SaltSize+BlockSize {
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrDecryption, ErrMalformedEnvelope, len(raw))
	}

	salt := raw[:SaltSize]
	iv := raw[SaltSize : SaltSize+BlockSize]
	ciphertext := raw[SaltSize+BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: %w: ciphertext is not block aligned", ErrDecryption, ErrMalformedEnvelope)
	}

	key, err := DeriveKey(password, salt, KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	defer ClearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %w", ErrDecryption, err)
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, err := pkcs7Unpad(plain, BlockSize)
	if err != nil {
		ClearBytes(plain)
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return unpadded, nil
}

func encryptGCM(plaintext, password []byte, iterations int) (string, error) {
	kdf, err := NewKDF()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	kdf.Iterations = iterations

	key, err := kdf.DeriveKey(password, KeySize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	enc := NewEncryptor(key)
	defer enc.Destroy()

	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	raw := make([]byte, 0, SaltSize+len(sealed))
	raw = append(raw, kdf.Salt...)
	raw = append(raw, sealed...)

	return versionTag + separator + strconv.Itoa(iterations) + separator +
		base64.StdEncoding.EncodeToString(raw), nil
}

func decryptGCM(envelope string, password []byte) ([]byte, error) {
	parts := strings.SplitN(envelope, separator, 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %w: missing fields", ErrDecryption, ErrMalformedEnvelope)
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return nil, fmt.Errorf("%w: %w: bad iteration count %q", ErrDecryption, ErrMalformedEnvelope, parts[1])
	}

	raw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrDecryption, ErrMalformedEnvelope, err)
	}
	if len(raw) < SaltSize+NonceSize+TagSize {
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrDecryption, ErrMalformedEnvelope, len(raw))
	}

	kdf := &KDF{Salt: raw[:SaltSize], Iterations: iterations}
	key, err := kdf.DeriveKey(password, KeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	enc := NewEncryptor(key)
	defer enc.Destroy()

	plaintext, err := enc.Decrypt(raw[SaltSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return plaintext, nil
}
