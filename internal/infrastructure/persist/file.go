// Package persist keeps the signed-in session between runs of the client.
package persist

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// DefaultStorageKey names the entry holding the session inside the document.
const DefaultStorageKey = "userData"

// FileStore saves the session as one entry of a JSON document on disk:
//
//	{ "userData": { "user": {...}, "token": "...", ... } }
//
// With a key configured the whole document is sealed with XChaCha20-Poly1305
// and written as nonce||ciphertext.
type FileStore struct {
	path string
	key  string
	aead cipher.AEAD

	mu sync.Mutex
}

// NewFileStore opens a store at path. A leading ~ expands to the home
// directory. hexKey is empty for plaintext or 64 hex characters.
func NewFileStore(path, storageKey, hexKey string) (*FileStore, error) {
	resolved, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	if storageKey == "" {
		storageKey = DefaultStorageKey
	}
	s := &FileStore{path: resolved, key: storageKey}
	if hexKey == "" {
		return s, nil
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("session key: want %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("session cipher: %w", err)
	}
	s.aead = aead
	return s, nil
}

// Path returns the resolved file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (*domain.PersistedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[s.key]
	if !ok {
		return nil, nil
	}
	var sess domain.PersistedSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *FileStore) Save(_ context.Context, sess domain.PersistedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		// An unreadable document is replaced rather than blocking sign-in.
		doc = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	doc[s.key] = raw
	return s.write(doc)
}

// Clear removes the session entry, and the file once nothing else is in it.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err == nil {
		if _, ok := doc[s.key]; !ok {
			return nil
		}
		if len(doc) > 1 {
			delete(doc, s.key)
			return s.write(doc)
		}
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if s.aead != nil {
		if data, err = s.open(data); err != nil {
			return nil, err
		}
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return doc, nil
}

// write replaces the file atomically with owner-only permissions.
func (s *FileStore) write(doc map[string]json.RawMessage) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if s.aead != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("session nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(s.key)), nil
}

func (s *FileStore) open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, errors.New("session file truncated")
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(s.key))
	if err != nil {
		return nil, fmt.Errorf("decrypt session file: %w", err)
	}
	return plain, nil
}

func expandHome(path string) (string, error) {
	if path == "" {
		return "", errors.New("session path is empty")
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Nop keeps nothing. Every run starts signed out.
type Nop struct{}

func (Nop) Load(context.Context) (*domain.PersistedSession, error) { return nil, nil }

func (Nop) Save(context.Context, domain.PersistedSession) error { return nil }

func (Nop) Clear(context.Context) error { return nil }
