package store

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// FileStore is the default Credential Store backend: the credential list is
// serialized to JSON, encrypted with AES-256-GCM, and written atomically via
// temp-file-then-rename. The encryption key and the HMAC key used to derive
// credential IDs are both subkeys of one persisted salt, so losing the salt
// file forces regeneration of every credential ID (per the store's documented
// invariant).
type FileStore struct {
	mu        sync.RWMutex
	dir       string
	credsPath string
	salt      saltKeeper
}

// NewFileStore creates a file-backed store rooted at dir. dir is created if
// it does not yet exist.
func NewFileStore(dir, fileName string) *FileStore {
	if fileName == "" {
		fileName = "credentials.enc"
	}
	return &FileStore{
		dir:       dir,
		credsPath: filepath.Join(dir, fileName),
		salt:      saltKeeper{dir: dir},
	}
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) GetSalt(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.salt.loadOrCreate()
}

func (s *FileStore) subkey(label string) ([]byte, error) {
	salt, err := s.GetSalt(context.Background())
	if err != nil {
		return nil, err
	}
	return deriveSubkey(salt, label), nil
}

// ComputeID derives a stable, non-reversible credential ID: HMAC-SHA256 of
// the refresh secret under the salt's "id" subkey, hex-encoded.
func (s *FileStore) ComputeID(refreshSecret string) (string, error) {
	key, err := s.subkey("credential-id")
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(refreshSecret))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *FileStore) ReadAll(_ context.Context) ([]*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAllLocked()
}

func (s *FileStore) readAllLocked() ([]*Credential, error) {
	data, err := os.ReadFile(s.credsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read credentials file: %w", err)
	}

	plain, err := s.decryptLocked(data)
	if err != nil {
		// Failures to decrypt are fatal and surfaced to the operator, not
		// silently treated as "no credentials".
		return nil, fmt.Errorf("store: decrypt credentials (fatal, check salt file integrity): %w", err)
	}

	var creds []*Credential
	if len(plain) > 0 {
		if err = json.Unmarshal(plain, &creds); err != nil {
			return nil, fmt.Errorf("store: unmarshal credentials: %w", err)
		}
	}
	return cloneList(creds), nil
}

func (s *FileStore) WriteAll(_ context.Context, creds []*Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAllLocked(creds)
}

func (s *FileStore) writeAllLocked(creds []*Credential) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("store: marshal credentials: %w", err)
	}
	cipherText, err := s.encryptLocked(plain)
	if err != nil {
		return fmt.Errorf("store: encrypt credentials: %w", err)
	}
	if err = os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}
	if err = writeFileAtomic(s.credsPath, cipherText, 0o600); err != nil {
		return fmt.Errorf("store: persist credentials: %w", err)
	}
	return nil
}

// MergeActive reconciles the in-memory working set back onto the canonical
// on-disk list under the store's write lock, so a concurrent ReadAll never
// observes a half-written merge.
func (s *FileStore) MergeActive(_ context.Context, active []*Credential, single *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	canonical, err := s.readAllLocked()
	if err != nil {
		return err
	}

	byID := make(map[string]*Credential, len(canonical))
	for _, c := range canonical {
		byID[c.ID] = c
	}

	for _, c := range active {
		if existing, ok := byID[c.ID]; ok {
			*existing = *c
		} else {
			cp := c.Clone()
			byID[cp.ID] = cp
			canonical = append(canonical, cp)
		}
	}
	if single != nil {
		if existing, ok := byID[single.ID]; ok {
			*existing = *single
		} else {
			cp := single.Clone()
			byID[cp.ID] = cp
			canonical = append(canonical, cp)
		}
	}

	merged := make([]*Credential, 0, len(canonical))
	for _, c := range canonical {
		merged = append(merged, c)
	}
	return s.writeAllLocked(merged)
}

func (s *FileStore) encryptLocked(plain []byte) ([]byte, error) {
	key, err := s.subkey("credential-blob")
	if err != nil {
		return nil, err
	}
	return aesGCMEncrypt(key, plain)
}

func (s *FileStore) decryptLocked(data []byte) ([]byte, error) {
	key, err := s.subkey("credential-blob")
	if err != nil {
		return nil, err
	}
	return aesGCMDecrypt(key, data)
}

// Watch starts an fsnotify watch on the credential file's directory and
// invokes onReload with the freshly re-read list whenever the file changes.
// It returns a stop function. Decrypt failures during a watched reload are
// logged and the in-memory cache is left untouched (the store does not
// silently discard data on a transient write race).
func (s *FileStore) Watch(onReload func([]*Credential)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	if err = os.MkdirAll(s.dir, 0o700); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	if err = watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("store: watch dir: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != s.credsPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				creds, errReload := s.ReadAll(context.Background())
				if errReload != nil {
					log.WithError(errReload).Error("store: credential file changed but reload failed")
					continue
				}
				if onReload != nil {
					onReload(creds)
				}
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(errWatch).Warn("store: watcher error")
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}

func cloneList(in []*Credential) []*Credential {
	out := make([]*Credential, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// writeFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so concurrent readers never observe a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
