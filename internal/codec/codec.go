// Package codec implements the OpenSSL-style salted password container used
// for the key store file. The layout is "Salted__" || 8-byte salt ||
// AES-256-CBC ciphertext with PKCS#7 padding, with key and IV derived by
// PBKDF2-HMAC-SHA256 over the passphrase and salt at 10000 iterations.
// Stores written by older tooling decrypt byte-for-byte, so the parameters
// here must not change.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	magic      = "Salted__"
	saltSize   = 8
	keySize    = 32 // AES-256
	ivSize     = 16
	iterations = 10000
)

var (
	// ErrBadFormat indicates the container does not start with the
	// "Salted__" header or is too short to hold one plus a salt.
	ErrBadFormat = errors.New("container missing Salted__ header")

	// ErrBadPadding indicates decryption produced invalid PKCS#7 padding,
	// meaning a wrong passphrase or a corrupted container.
	ErrBadPadding = errors.New("invalid padding: wrong passphrase or corrupted container")
)

// deriveKeyIV derives the AES key and CBC IV from passphrase and salt.
// A single 48-byte PBKDF2 block is split into key (32) and IV (16).
func deriveKeyIV(passphrase string, salt []byte) (key, iv []byte) {
	block := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize+ivSize, sha256.New)
	return block[:keySize], block[keySize:]
}

// Encrypt seals plaintext into a salted container using a fresh random salt.
// Output differs between calls even for identical plaintext.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key, iv := deriveKeyIV(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pad(plaintext)

	out := make([]byte, len(magic)+saltSize+len(padded))
	copy(out, magic)
	copy(out[len(magic):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(magic)+saltSize:], padded)

	return out, nil
}

// Decrypt opens a salted container produced by Encrypt or by compatible
// tooling. Returns ErrBadFormat for a missing header and ErrBadPadding when
// the passphrase is wrong or the ciphertext is damaged.
func Decrypt(container []byte, passphrase string) ([]byte, error) {
	if len(container) < len(magic)+saltSize || string(container[:len(magic)]) != magic {
		return nil, ErrBadFormat
	}

	salt := container[len(magic) : len(magic)+saltSize]
	ciphertext := container[len(magic)+saltSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBadPadding
	}

	key, iv := deriveKeyIV(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return unpad(padded)
}

// pad applies PKCS#7 padding up to the AES block size
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// unpad strips and validates PKCS#7 padding
func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}
