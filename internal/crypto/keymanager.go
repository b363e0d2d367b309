// Package crypto loads the Kalshi API signing key, optionally from a
// password-encrypted file.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	blobVersion      = 2
)

// ErrNoKey means no key source is configured. Callers may run unsigned.
var ErrNoKey = errors.New("crypto: no key source configured")

// encryptedBlob is the on-disk format written by EncryptPEM.
type encryptedBlob struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig names where the key lives. PEMPath wins over EncryptedKeyPath.
type KeyConfig struct {
	PEMPath          string
	EncryptedKeyPath string
	KeyPassword      string
}

// EncryptPEM seals a PEM-encoded key with AES-256-GCM under a
// PBKDF2-SHA256 derived key and returns the JSON blob to write to disk.
func EncryptPEM(pemBytes []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if _, err := ParseRSAKey(pemBytes); err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	enc := base64.StdEncoding
	return json.MarshalIndent(encryptedBlob{
		Version:    blobVersion,
		KDF:        "pbkdf2-sha256",
		Salt:       enc.EncodeToString(salt),
		Nonce:      enc.EncodeToString(nonce),
		Ciphertext: enc.EncodeToString(gcm.Seal(nil, nonce, pemBytes, nil)),
	}, "", "  ")
}

// DecryptPEM reverses EncryptPEM.
func DecryptPEM(blob []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	var b encryptedBlob
	if err := json.Unmarshal(blob, &b); err != nil {
		return nil, fmt.Errorf("crypto: parse encrypted key: %w", err)
	}
	if b.Version != blobVersion {
		return nil, fmt.Errorf("crypto: unsupported key file version %d", b.Version)
	}

	enc := base64.StdEncoding
	salt, err1 := enc.DecodeString(b.Salt)
	nonce, err2 := enc.DecodeString(b.Nonce)
	sealed, err3 := enc.DecodeString(b.Ciphertext)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("crypto: decode encrypted key: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: bad nonce length %d", len(nonce))
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt failed (wrong password?): %w", err)
	}
	return plain, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return gcm, nil
}

// ParseRSAKey decodes a PKCS#8 or PKCS#1 RSA private key.
func ParseRSAKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("crypto: no PEM block in key")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("crypto: expected RSA key, got %T", k)
	}
	return rk, nil
}

// LoadKalshiKey resolves the RSA signing key. It returns ErrNoKey when
// neither path is set.
func LoadKalshiKey(cfg KeyConfig) (*rsa.PrivateKey, error) {
	switch {
	case cfg.PEMPath != "":
		data, err := os.ReadFile(cfg.PEMPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: read key: %w", err)
		}
		return ParseRSAKey(data)
	case cfg.EncryptedKeyPath != "":
		blob, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: read encrypted key: %w", err)
		}
		plain, err := DecryptPEM(blob, cfg.KeyPassword)
		if err != nil {
			return nil, err
		}
		return ParseRSAKey(plain)
	}
	return nil, ErrNoKey
}
