// Package store owns the durable ordered list of API keys and the active
// pointer. The list lives encrypted in keys.enc; the active pointer is a
// plaintext 1-based integer in a side file named current.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"droidkey/internal/codec"
	"droidkey/internal/fsutil"
)

const (
	keysFile    = "keys.enc"
	currentFile = "current"

	// The passphrase is a fixed, non-secret constant shared by every
	// installation. The container obfuscates keys against casual disk
	// inspection; it is not confidentiality against a local attacker with
	// source access. Changing it would orphan every existing store.
	passphrase = "oroio"
)

var (
	// ErrStoreUnreadable indicates the key store file exists but could not
	// be decrypted or parsed.
	ErrStoreUnreadable = errors.New("key store is unreadable")

	// ErrIndexOutOfRange indicates a 1-based index outside [1, len].
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Store manages the encrypted key list and the active pointer on disk
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's data directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) keysPath() string {
	return filepath.Join(s.dir, keysFile)
}

func (s *Store) currentPath() string {
	return filepath.Join(s.dir, currentFile)
}

// List decrypts and parses the key store. A missing store file is an empty
// list, not an error; a store that exists but cannot be decrypted is
// ErrStoreUnreadable.
func (s *Store) List() ([]string, error) {
	data, err := os.ReadFile(s.keysPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, err)
	}

	plaintext, err := codec.Decrypt(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreadable, err)
	}

	return parseKeys(string(plaintext)), nil
}

// Save serializes and encrypts the key list, then writes it atomically.
// Every call uses a fresh salt, so the file bytes change even when the
// content does not.
func (s *Store) Save(keys []string) error {
	container, err := codec.Encrypt([]byte(serializeKeys(keys)), passphrase)
	if err != nil {
		return fmt.Errorf("failed to encrypt key store: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.keysPath(), container, 0600); err != nil {
		return fmt.Errorf("failed to write key store: %w", err)
	}
	return nil
}

// AddOne appends a key and saves, returning the new list. The active
// pointer is untouched.
func (s *Store) AddOne(secret string) ([]string, error) {
	keys, err := s.List()
	if err != nil {
		return nil, err
	}
	keys = append(keys, secret)
	if err := s.Save(keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// RemoveAt removes the key at a 1-based index, saves, and resets the active
// pointer to 1. Positions shift on removal, so whatever the pointer named
// before may no longer exist at the same slot.
func (s *Store) RemoveAt(index int) ([]string, error) {
	keys, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(keys) {
		return nil, ErrIndexOutOfRange
	}

	keys = append(keys[:index-1], keys[index:]...)
	if err := s.Save(keys); err != nil {
		return nil, err
	}
	if err := s.writeActive(1); err != nil {
		return nil, err
	}
	return keys, nil
}

// SetActive persists the active pointer after validating it against the
// current list length. The list and cache are untouched.
func (s *Store) SetActive(index int) error {
	keys, err := s.List()
	if err != nil {
		return err
	}
	if index < 1 || index > len(keys) {
		return ErrIndexOutOfRange
	}
	return s.writeActive(index)
}

// GetActive reads the active pointer. A missing or unparseable pointer file
// yields 1; this never fails.
func (s *Store) GetActive() int {
	data, err := os.ReadFile(s.currentPath())
	if err != nil {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// EncryptedBlob returns the raw bytes of the encrypted store file, used by
// the cache as its integrity tag input. A missing store yields nil.
func (s *Store) EncryptedBlob() ([]byte, error) {
	data, err := os.ReadFile(s.keysPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read key store: %w", err)
	}
	return data, nil
}

func (s *Store) writeActive(index int) error {
	if err := fsutil.WriteFileAtomic(s.currentPath(), []byte(strconv.Itoa(index)), 0600); err != nil {
		return fmt.Errorf("failed to write active pointer: %w", err)
	}
	return nil
}

// serializeKeys renders one "<key>\t" line per key, newline-joined. The
// trailing tab is load-bearing: compatible readers split each line on the
// first tab.
func serializeKeys(keys []string) string {
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "\t"
	}
	return strings.Join(lines, "\n")
}

// parseKeys splits on newlines, drops blanks, and keeps the text before the
// first tab of each line.
func parseKeys(text string) []string {
	var keys []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.IndexByte(line, '\t'); i >= 0 {
			line = line[:i]
		}
		keys = append(keys, line)
	}
	return keys
}
