// Package tokencrypt encrypts OAuth token material for storage. Ciphertext is
// a self-contained four-segment hex string `salt:iv:tag:ciphertext`; this
// format is the storage contract other components depend on.
package tokencrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	saltLen = 16
	ivLen   = 12
	tagLen  = 16
	keyLen  = 32

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

var (
	// ErrEmptyPlaintext guards against persisting an empty credential.
	ErrEmptyPlaintext = errors.New("tokencrypt: empty plaintext")
	// ErrMalformedCiphertext indicates the blob does not parse into four
	// hex segments.
	ErrMalformedCiphertext = errors.New("tokencrypt: malformed ciphertext")
	// ErrDecryptFailed indicates authentication failure: tampered or
	// foreign ciphertext, or the wrong master secret.
	ErrDecryptFailed = errors.New("tokencrypt: decryption failed")
)

// IsDecryptionError reports whether err is any decrypt-side failure. Callers
// treat malformed and tampered blobs identically: the stored credential is
// unusable and the user must reconnect.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrMalformedCiphertext) || errors.Is(err, ErrDecryptFailed)
}

// Cipher performs authenticated symmetric encryption of token material. Each
// Encrypt call uses a fresh random salt and IV, so two encryptions of the
// same plaintext produce different blobs.
type Cipher struct {
	master []byte
}

// New creates a Cipher from the operator-provided master secret. A 64-char
// hex secret is decoded and used as raw key material; any other non-empty
// string is accepted as a passphrase. Returns an error only for an empty
// secret; callers choosing to run without one must call NewInsecureDev.
func New(masterSecret string) (*Cipher, error) {
	masterSecret = strings.TrimSpace(masterSecret)
	if masterSecret == "" {
		return nil, errors.New("tokencrypt: master secret is empty")
	}
	if len(masterSecret) == 2*keyLen {
		if raw, err := hex.DecodeString(masterSecret); err == nil {
			return &Cipher{master: raw}, nil
		}
	}
	sum := sha256.Sum256([]byte(masterSecret))
	return &Cipher{master: sum[:]}, nil
}

// NewInsecureDev creates a Cipher from a fixed development secret. Local
// development only; deployment policy requires a configured secret.
func NewInsecureDev() *Cipher {
	sum := sha256.Sum256([]byte("devtrack-insecure-dev-key"))
	return &Cipher{master: sum[:]}
}

// Encrypt seals plaintext into a `salt:iv:tag:ciphertext` hex blob.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("tokencrypt: generate salt: %w", err)
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("tokencrypt: generate iv: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	}, ":"), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 4 {
		return "", ErrMalformedCiphertext
	}

	segments := make([][]byte, 4)
	for i, p := range parts {
		raw, err := hex.DecodeString(p)
		if err != nil {
			return "", ErrMalformedCiphertext
		}
		segments[i] = raw
	}
	salt, iv, tag, ct := segments[0], segments[1], segments[2], segments[3]
	if len(salt) != saltLen || len(iv) != ivLen || len(tag) != tagLen {
		return "", ErrMalformedCiphertext
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

// aead derives the per-call key from the master secret and salt and returns
// an AES-256-GCM instance for it.
func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.master, salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("tokencrypt: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("tokencrypt: init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
