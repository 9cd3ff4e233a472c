// Package secrets encrypts service access instructions before they are
// persisted. The stored form is "<ivHex>:<cipherHex>" (AES-256-CBC with a
// fresh random IV per call), matching the rows already in the database.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates the hex IV from the hex ciphertext in stored values.
const Delimiter = ":"

// ErrMalformedCiphertext indicates a stored value that cannot be decrypted:
// missing delimiter, bad IV segment, or corrupted cipher bytes.
var ErrMalformedCiphertext = errors.New("secrets: malformed ciphertext")

// Cipher encrypts and decrypts instruction strings with a process-wide key.
type Cipher struct {
	key []byte
}

// NewCipher constructs a Cipher from a 32-byte AES-256 key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("secrets: key must be 32 bytes, got %d", len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}, nil
}

// Encrypt encrypts plaintext and returns "<ivHex>:<cipherHex>". A random IV
// is drawn per call, so equal plaintexts produce distinct outputs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, errCipher := aes.NewCipher(c.key)
	if errCipher != nil {
		return "", fmt.Errorf("secrets: new cipher: %w", errCipher)
	}

	iv := make([]byte, aes.BlockSize)
	if _, errRead := rand.Read(iv); errRead != nil {
		return "", fmt.Errorf("secrets: generate iv: %w", errRead)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	return hex.EncodeToString(iv) + Delimiter + hex.EncodeToString(encrypted), nil
}

// Decrypt reverses Encrypt. Only the first delimiter-separated segment is
// treated as the IV; the remainder is rejoined as the cipher segment.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	parts := strings.SplitN(ciphertext, Delimiter, 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", ErrMalformedCiphertext
	}

	iv, errIV := hex.DecodeString(parts[0])
	if errIV != nil || len(iv) != aes.BlockSize {
		return "", ErrMalformedCiphertext
	}
	encrypted, errHex := hex.DecodeString(parts[1])
	if errHex != nil || len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", ErrMalformedCiphertext
	}

	block, errCipher := aes.NewCipher(c.key)
	if errCipher != nil {
		return "", fmt.Errorf("secrets: new cipher: %w", errCipher)
	}

	padded := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, encrypted)

	plaintext, errPad := pkcs7Unpad(padded, aes.BlockSize)
	if errPad != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plaintext), nil
}

// pkcs7Pad pads data to a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad strips and validates PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
