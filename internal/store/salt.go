package store

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
)

const (
	saltFileName = "salt"
	saltSize     = 32
)

// saltKeeper lazily loads or creates the single persisted salt that both
// credential-ID derivation and blob encryption key derivation hang off of.
// It is always file-backed, even for the Postgres store backend: the salt
// is small, local, and does not need the durability/HA properties Postgres
// gives the credential list itself.
type saltKeeper struct {
	mu   sync.Mutex
	dir  string
	salt []byte
}

func (k *saltKeeper) loadOrCreate() ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.salt) == saltSize {
		return k.salt, nil
	}
	path := filepath.Join(k.dir, saltFileName)
	if data, err := os.ReadFile(path); err == nil && len(data) == saltSize {
		k.salt = data
		return k.salt, nil
	} else if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("store: read salt: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("store: generate salt: %w", err)
	}
	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	if err := writeFileAtomic(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("store: persist salt: %w", err)
	}
	k.salt = salt
	log.Warn("store: generated a new credential-ID salt; all credential IDs will be freshly derived")
	return k.salt, nil
}

// deriveSubkey derives a purpose-specific subkey from the persisted salt via
// HKDF-SHA256 (RFC 5869), so one salt serves both credential-ID derivation
// and blob encryption without key reuse across purposes: salt is the HKDF
// secret, label is the info parameter.
func deriveSubkey(salt []byte, label string) []byte {
	out := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, salt, nil, []byte(label))
	if _, err := io.ReadFull(r, out); err != nil {
		log.Warnf("store: hkdf derive for %q failed: %v", label, err)
	}
	return out
}
