// Package pool implements the Credential Pool (C6): rotation strategy,
// lazy access-token refresh, batched concurrent renewal on startup, and
// model-aware selection against the quota and cooldown ledgers.
package pool

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cliforge/codeassist-gateway/internal/store"
)

// OAuth configuration for the upstream's refresh-token exchange. These are
// the same published native-app client credentials the CodeAssist backend
// expects from any caller; they are not a secret the gateway itself owns.
const (
	oauthClientID     = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	oauthClientSecret = "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"
)

var oauthScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// refreshSafetyBuffer: a token expiring within this window is treated as
// already expired and refreshed eagerly.
const refreshSafetyBuffer = 60 * time.Second

// Strategy selects how the pool rotates across enabled credentials.
type Strategy string

const (
	StrategyRoundRobin     Strategy = "round_robin"
	StrategyRequestCount   Strategy = "request_count"
	StrategyQuotaExhausted Strategy = "quota_exhausted"
)

// QuotaView is the subset of the Quota Ledger the pool consults during
// selection. Passed as an interface (not the concrete *quota.Ledger) to
// break the pool/ledger/pipeline cyclic dependency.
type QuotaView interface {
	HasQuotaFor(credID, modelID string) bool
}

// CooldownView is the subset of the Cooldown Ledger the pool consults
// during selection.
type CooldownView interface {
	Available(credID, modelID string) bool
}

// Selection is the result of Select: the chosen credential plus whether the
// model-aware filter had to be relaxed to avoid livelock.
type Selection struct {
	Credential *store.Credential
	BestEffort bool
}

// Pool rotates across a fleet of OAuth credentials loaded from a Store.
type Pool struct {
	mu            sync.Mutex
	st            store.Store
	quota         QuotaView
	cooldown      CooldownView
	strategy      Strategy
	requestCountN int

	creds  []*store.Credential // enabled credentials, in store order
	cursor int

	perCredCounter map[string]int // request_count strategy
	quotaExhausted []*store.Credential

	oauthConf *oauth2.Config
	refreshSF singleflight.Group
}

// Options configures a new Pool.
type Options struct {
	Store         store.Store
	Quota         QuotaView
	Cooldown      CooldownView
	Strategy      Strategy
	RequestCountN int
	OAuthRedirect string // only used to populate the Config value; login flow is out of scope
}

// New constructs a Pool and performs an initial Reload.
func New(ctx context.Context, opts Options) (*Pool, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyRoundRobin
	}
	if opts.RequestCountN <= 0 {
		opts.RequestCountN = 5
	}
	p := &Pool{
		st:             opts.Store,
		quota:          opts.Quota,
		cooldown:       opts.Cooldown,
		strategy:       opts.Strategy,
		requestCountN:  opts.RequestCountN,
		perCredCounter: make(map[string]int),
		oauthConf: &oauth2.Config{
			ClientID:     oauthClientID,
			ClientSecret: oauthClientSecret,
			RedirectURL:  opts.OAuthRedirect,
			Scopes:       oauthScopes,
			Endpoint:     google.Endpoint,
		},
	}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// SetStrategy changes the rotation strategy at runtime, resetting per-
// credential counters and cursor.
func (p *Pool) SetStrategy(strategy Strategy, requestCountN int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategy = strategy
	if requestCountN > 0 {
		p.requestCountN = requestCountN
	}
	p.cursor = 0
	p.perCredCounter = make(map[string]int)
}

// Reload re-reads the store, re-minting session IDs, discarding per-
// credential counters and indices, and re-seeding the quota-exhausted
// derived list. It also eagerly refreshes every expired credential
// concurrently (errgroup) before returning, per the startup contract.
func (p *Pool) Reload(ctx context.Context) error {
	all, err := p.st.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("pool: reload: %w", err)
	}

	enabled := make([]*store.Credential, 0, len(all))
	for _, c := range all {
		if !c.Enabled {
			continue
		}
		c.SessionID = newSessionID()
		enabled = append(enabled, c)
	}

	p.mu.Lock()
	p.creds = enabled
	p.cursor = 0
	p.perCredCounter = make(map[string]int)
	p.rebuildQuotaExhaustedLocked()
	p.mu.Unlock()

	return p.refreshAllExpired(ctx)
}

func (p *Pool) rebuildQuotaExhaustedLocked() {
	list := make([]*store.Credential, 0, len(p.creds))
	for _, c := range p.creds {
		if c.HasQuota {
			list = append(list, c)
		}
	}
	if len(list) == 0 {
		// Self-heal: assume the upstream has rolled its quota window.
		for _, c := range p.creds {
			c.HasQuota = true
		}
		list = append(list, p.creds...)
	}
	p.quotaExhausted = list
}

// refreshAllExpired enumerates credentials whose access token is expired (or
// within the safety buffer) and refreshes them concurrently.
func (p *Pool) refreshAllExpired(ctx context.Context) error {
	p.mu.Lock()
	targets := make([]*store.Credential, 0)
	now := time.Now().Add(refreshSafetyBuffer).UnixMilli()
	for _, c := range p.creds {
		if c.AccessExpiryEpochMs == 0 || c.AccessExpiryEpochMs <= now {
			targets = append(targets, c)
		}
	}
	p.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range targets {
		c := c
		g.Go(func() error {
			if err := p.refreshCredential(gCtx, c); err != nil {
				log.WithError(err).Warnf("pool: startup refresh failed for credential %s", c.ID)
			}
			return nil // per-credential failures don't abort the group
		})
	}
	_ = g.Wait()
	return nil
}

// refreshCredential refreshes a single credential's access token, coalescing
// concurrent callers for the same credential via singleflight, and
// classifying failures by the upstream's reported HTTP status.
func (p *Pool) refreshCredential(ctx context.Context, c *store.Credential) error {
	_, err, _ := p.refreshSF.Do(c.ID, func() (any, error) {
		tok := &oauth2.Token{RefreshToken: c.RefreshSecret}
		src := p.oauthConf.TokenSource(ctx, tok)
		fresh, errRefresh := src.Token()
		if errRefresh != nil {
			classifyRefreshFailure(c, errRefresh)
			return nil, errRefresh
		}

		p.mu.Lock()
		c.AccessSecret = fresh.AccessToken
		c.AccessExpiryEpochMs = fresh.Expiry.UnixMilli()
		p.mu.Unlock()

		if mergeErr := p.st.MergeActive(ctx, nil, c); mergeErr != nil {
			log.WithError(mergeErr).Warnf("pool: failed to persist refreshed token for %s", c.ID)
		}
		return nil, nil
	})
	return err
}

// classifyRefreshFailure disables the credential on an unrecoverable
// 400/403 from the token endpoint; any other error is left enabled and
// logged so a transient network failure doesn't strand a good credential.
func classifyRefreshFailure(c *store.Credential, err error) {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		switch retrieveErr.Response.StatusCode {
		case 400, 403:
			c.Enabled = false
			log.Warnf("pool: disabling credential %s after %d from refresh endpoint", c.ID, retrieveErr.Response.StatusCode)
			return
		}
	}
	log.WithError(err).Warnf("pool: refresh failed for credential %s, leaving enabled", c.ID)
}

// Select returns the next credential under the pool's strategy, filtered by
// model-aware quota/cooldown availability when modelID is non-empty. If no
// credential satisfies the filter, the pool falls back to the unfiltered
// rotation and flags the result as best-effort.
func (p *Pool) Select(ctx context.Context, modelID string) (Selection, error) {
	p.mu.Lock()
	if len(p.creds) == 0 {
		p.mu.Unlock()
		return Selection{}, fmt.Errorf("pool: no enabled credentials available")
	}

	filtered := p.creds
	bestEffort := false
	if modelID != "" {
		candidates := make([]*store.Credential, 0, len(p.creds))
		for _, c := range p.creds {
			if p.quota.HasQuotaFor(c.ID, modelID) && p.cooldown.Available(c.ID, modelID) {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) == 0 {
			bestEffort = true
		} else {
			filtered = candidates
		}
	}

	chosen := p.pickLocked(filtered)
	p.mu.Unlock()

	if err := p.ensureFresh(ctx, chosen); err != nil {
		return Selection{}, fmt.Errorf("pool: refresh selected credential: %w", err)
	}
	return Selection{Credential: chosen, BestEffort: bestEffort}, nil
}

func (p *Pool) pickLocked(candidates []*store.Credential) *store.Credential {
	switch p.strategy {
	case StrategyRequestCount:
		return p.pickRequestCountLocked(candidates)
	case StrategyQuotaExhausted:
		return p.pickQuotaExhaustedLocked(candidates)
	default:
		return p.pickRoundRobinLocked(candidates)
	}
}

func (p *Pool) pickRoundRobinLocked(candidates []*store.Credential) *store.Credential {
	idx := p.cursor % len(candidates)
	p.cursor = (p.cursor + 1) % len(candidates)
	return candidates[idx]
}

func (p *Pool) pickRequestCountLocked(candidates []*store.Credential) *store.Credential {
	idx := p.cursor % len(candidates)
	chosen := candidates[idx]
	p.perCredCounter[chosen.ID]++
	if p.perCredCounter[chosen.ID] >= p.requestCountN {
		p.perCredCounter[chosen.ID] = 0
		p.cursor = (p.cursor + 1) % len(candidates)
	}
	return chosen
}

// pickQuotaExhaustedLocked draws from the derived has_quota-true list,
// restricted to the caller's model-aware candidate set. It removes the
// chosen credential from the front of the underlying list; once that list
// empties (across all models), Reload/rebuild resets has_quota on every
// credential and rebuilds it.
func (p *Pool) pickQuotaExhaustedLocked(candidates []*store.Credential) *store.Credential {
	if len(p.quotaExhausted) == 0 {
		p.rebuildQuotaExhaustedLocked()
	}
	allowed := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = struct{}{}
	}
	for i, c := range p.quotaExhausted {
		if _, ok := allowed[c.ID]; ok {
			p.quotaExhausted = append(p.quotaExhausted[:i], p.quotaExhausted[i+1:]...)
			return c
		}
	}
	// No quota-exhausted-list entry matches the model filter; fall back to
	// the first candidate without consuming the derived list.
	return candidates[0]
}

// MarkQuotaExhausted flips has_quota off for a credential under the
// quota_exhausted strategy; the derived list self-heals once it empties.
func (p *Pool) MarkQuotaExhausted(ctx context.Context, credID string) {
	p.mu.Lock()
	for _, c := range p.creds {
		if c.ID == credID {
			c.HasQuota = false
			break
		}
	}
	p.mu.Unlock()
	if err := p.st.MergeActive(ctx, p.snapshot(), nil); err != nil {
		log.WithError(err).Warn("pool: failed to persist has_quota flip")
	}
}

// DisableCredential permanently removes credID from rotation (a 403 "no
// permission" response from the backend means the refresh token itself has
// been revoked or the project de-authorized, not a transient condition).
func (p *Pool) DisableCredential(ctx context.Context, credID string) {
	p.mu.Lock()
	var disabled *store.Credential
	kept := p.creds[:0]
	for _, c := range p.creds {
		if c.ID == credID {
			c.Enabled = false
			disabled = c
			continue
		}
		kept = append(kept, c)
	}
	p.creds = kept
	p.cursor = 0
	p.mu.Unlock()

	if disabled == nil {
		return
	}
	if err := p.st.MergeActive(ctx, nil, disabled); err != nil {
		log.WithError(err).Warnf("pool: failed to persist disable of credential %s", credID)
	}
}

func (p *Pool) snapshot() []*store.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*store.Credential, len(p.creds))
	copy(out, p.creds)
	return out
}

// Credentials returns a snapshot of every credential the pool currently
// holds, for admin/status surfaces that need to report pool composition.
func (p *Pool) Credentials() []*store.Credential {
	return p.snapshot()
}

// ensureFresh refreshes chosen's access token if it is expired or within
// the safety buffer.
func (p *Pool) ensureFresh(ctx context.Context, c *store.Credential) error {
	if c.AccessExpiryEpochMs > time.Now().Add(refreshSafetyBuffer).UnixMilli() {
		return nil
	}
	return p.refreshCredential(ctx, c)
}

func newSessionID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), randUint32())
}

func randUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}
