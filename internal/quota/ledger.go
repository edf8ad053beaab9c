// Package quota tracks per-credential, per-model remaining-fraction and
// reset-time figures reported by the upstream's model catalog, plus the
// request counters the operator UI uses to estimate requests remaining.
package quota

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cliforge/codeassist-gateway/internal/registry"
)

// quotaPerRequestPct is the teacher lineage's UI heuristic: each request is
// assumed to consume roughly this fraction of a model's quota window.
// Scheduling never consults it; only the operator-facing estimate does.
const quotaPerRequestPct = 0.6667

// Entry is one (credential, model) quota observation.
type Entry struct {
	RemainingFraction float64   `json:"r"`
	ResetTime         time.Time `json:"t"`
	ObservedAt        time.Time `json:"-"`
}

type key struct {
	credID  string
	modelID string
}

type counterKey struct {
	credID string
	group  string
}

// Ledger is memory-backed with periodic flush to a side file. It is safe
// for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	entries  map[key]*Entry
	counters map[counterKey]int

	idleTTL  time.Duration
	flushDir string

	stop chan struct{}
}

// Options configures a Ledger's background maintenance.
type Options struct {
	// FlushDir is the directory the "quotas" side file is written to. Empty
	// disables periodic flush (in-memory only).
	FlushDir string
	// IdleTTL is how long an unrefreshed entry survives before pruning.
	// Defaults to 1 hour.
	IdleTTL time.Duration
	// PruneInterval is how often the prune sweep runs. Defaults to 5 minutes.
	PruneInterval time.Duration
	// FlushInterval is how often the side file is rewritten. Defaults to 1
	// minute.
	FlushInterval time.Duration
}

// New creates a Ledger and, if opts.FlushDir is set, loads any previously
// flushed side file and starts the background prune/flush loops.
func New(opts Options) *Ledger {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = time.Hour
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = 5 * time.Minute
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Minute
	}

	l := &Ledger{
		entries:  make(map[key]*Entry),
		counters: make(map[counterKey]int),
		idleTTL:  opts.IdleTTL,
		flushDir: opts.FlushDir,
		stop:     make(chan struct{}),
	}
	if l.flushDir != "" {
		l.loadSideFile()
		go l.pruneLoop(opts.PruneInterval)
		go l.flushLoop(opts.FlushInterval)
	}
	return l
}

// Close stops the background loops. Safe to call once.
func (l *Ledger) Close() {
	close(l.stop)
}

// Upsert records the latest observation for (credID, modelID).
func (l *Ledger) Upsert(credID, modelID string, remaining float64, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key{credID, modelID}] = &Entry{
		RemainingFraction: remaining,
		ResetTime:         reset,
		ObservedAt:        time.Now(),
	}
}

// Snapshot returns a copy of every known model's quota entry for credID.
func (l *Ledger) Snapshot(credID string) map[string]Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Entry)
	for k, e := range l.entries {
		if k.credID == credID {
			out[k.modelID] = *e
		}
	}
	return out
}

// HasQuotaFor reports true when no entry exists yet for (credID, modelID)
// (optimistic default) or the entry's remaining fraction is positive.
func (l *Ledger) HasQuotaFor(credID, modelID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[key{credID, modelID}]
	if !ok {
		return true
	}
	return e.RemainingFraction > 0
}

// RecordRequest increments the per-(credID, model-group) request counter
// used only by EstimateRequestsRemaining.
func (l *Ledger) RecordRequest(credID, modelGroup string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters[counterKey{credID, modelGroup}]++
}

// EstimateRequestsRemaining is a deterministic UI helper, not a scheduling
// input: floor(remaining_pct / 0.6667) - request_counter, clamped at 0.
// minRemainingFraction selects which model entry within the group to use
// when multiple models in the group have been observed (the most
// conservative, i.e. lowest remaining fraction at or above the floor).
func (l *Ledger) EstimateRequestsRemaining(credID, modelGroup string, minRemainingFraction float64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	best := -1.0
	found := false
	for k, e := range l.entries {
		if k.credID != credID {
			continue
		}
		if registry.ModelGroup(k.modelID) != modelGroup {
			continue
		}
		if e.RemainingFraction < minRemainingFraction {
			continue
		}
		if !found || e.RemainingFraction < best {
			best = e.RemainingFraction
			found = true
		}
	}
	if !found {
		return 0
	}

	counter := l.counters[counterKey{credID, modelGroup}]
	estimate := int(math.Floor((best*100)/quotaPerRequestPct)) - counter
	if estimate < 0 {
		return 0
	}
	return estimate
}

func (l *Ledger) pruneLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.prune()
		case <-l.stop:
			return
		}
	}
}

func (l *Ledger) prune() {
	cutoff := time.Now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.ObservedAt.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

func (l *Ledger) flushLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := l.flush(); err != nil {
				log.WithError(err).Warn("quota: periodic flush failed")
			}
		case <-l.stop:
			if err := l.flush(); err != nil {
				log.WithError(err).Warn("quota: final flush failed")
			}
			return
		}
	}
}

// sideFile mirrors the persisted-state layout's "quotas" file shape.
type sideFile struct {
	Meta struct {
		LastCleanup time.Time     `json:"lastCleanup"`
		TTL         time.Duration `json:"ttl"`
	} `json:"meta"`
	Quotas map[string]credQuotas `json:"quotas"`
}

type credQuotas struct {
	LastUpdated time.Time             `json:"lastUpdated"`
	Models      map[string]modelQuota `json:"models"`
}

type modelQuota struct {
	RemainingFraction float64   `json:"r"`
	ResetTime         time.Time `json:"t"`
}

func (l *Ledger) path() string {
	return filepath.Join(l.flushDir, "quotas")
}

func (l *Ledger) flush() error {
	l.mu.RLock()
	out := sideFile{Quotas: make(map[string]credQuotas)}
	out.Meta.LastCleanup = time.Now()
	out.Meta.TTL = l.idleTTL
	for k, e := range l.entries {
		cq, ok := out.Quotas[k.credID]
		if !ok {
			cq = credQuotas{Models: make(map[string]modelQuota)}
		}
		if e.ObservedAt.After(cq.LastUpdated) {
			cq.LastUpdated = e.ObservedAt
		}
		cq.Models[k.modelID] = modelQuota{RemainingFraction: e.RemainingFraction, ResetTime: e.ResetTime}
		out.Quotas[k.credID] = cq
	}
	l.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("quota: marshal side file: %w", err)
	}
	if err = os.MkdirAll(l.flushDir, 0o700); err != nil {
		return fmt.Errorf("quota: create flush dir: %w", err)
	}
	return writeFileAtomic(l.path(), data, 0o600)
}

func (l *Ledger) loadSideFile() {
	data, err := os.ReadFile(l.path())
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("quota: failed to read side file, starting empty")
		}
		return
	}
	var in sideFile
	if err = json.Unmarshal(data, &in); err != nil {
		log.WithError(err).Warn("quota: failed to parse side file, starting empty")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for credID, cq := range in.Quotas {
		for modelID, mq := range cq.Models {
			l.entries[key{credID, modelID}] = &Entry{
				RemainingFraction: mq.RemainingFraction,
				ResetTime:         mq.ResetTime,
				ObservedAt:        cq.LastUpdated,
			}
		}
	}
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
