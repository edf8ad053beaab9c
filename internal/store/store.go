// Package store persists the gateway's credential list behind a small
// interface so the file-backed default and the optional Postgres backend
// are interchangeable.
package store

import "context"

// Credential is one OAuth-backed upstream identity the pool can rotate
// through. RefreshSecret and AccessSecret are opaque strings handed to the
// upstream OAuth token endpoint and the CodeAssist backend respectively;
// neither is ever logged.
type Credential struct {
	ID                  string `json:"id"`
	RefreshSecret       string `json:"refresh_secret"`
	AccessSecret        string `json:"access_secret,omitempty"`
	AccessExpiryEpochMs int64  `json:"access_expiry_epoch_ms,omitempty"`
	ProjectID           string `json:"project_id,omitempty"`
	Email               string `json:"email,omitempty"`
	HasQuota            bool   `json:"has_quota"`
	Enabled             bool   `json:"enabled"`
	// SessionID is re-minted on every store reload and carried in upstream
	// requests so the backend can associate a run of calls with one client
	// session. It is not itself persisted across reloads.
	SessionID string `json:"-"`
}

// Clone returns a deep copy so callers can mutate a working copy without
// racing the store's cached view.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Store is the Credential Store's backend-agnostic contract. Implementations
// must make WriteAll/MergeActive atomic against concurrent ReadAll calls.
type Store interface {
	// ReadAll returns every persisted credential.
	ReadAll(ctx context.Context) ([]*Credential, error)
	// WriteAll replaces the entire persisted credential list.
	WriteAll(ctx context.Context, creds []*Credential) error
	// MergeActive reconciles an in-memory working set (as mutated by the
	// pool: refreshed tokens, flipped has_quota/enabled flags) back into the
	// canonical on-disk list, preserving any credential present on disk but
	// absent from active (e.g. one added by another instance). When single
	// is non-nil only that credential's fields are guaranteed to be written
	// back.
	MergeActive(ctx context.Context, active []*Credential, single *Credential) error
	// GetSalt returns the instance's persisted ID-derivation salt, creating
	// one on first use.
	GetSalt(ctx context.Context) ([]byte, error)
	// ComputeID derives the stable opaque credential ID for a refresh
	// secret. Two credentials with the same refresh secret always compute
	// to the same ID, which is how duplicate imports are detected.
	ComputeID(refreshSecret string) (string, error)
}
