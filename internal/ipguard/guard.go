// Package ipguard defends the gateway's edge: callers that repeatedly fail
// authentication or probe non-whitelisted paths accumulate violations and
// are temporarily, then permanently, blocked.
package ipguard

import (
	"hash/fnv"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ViolationKind classifies what tripped the guard.
type ViolationKind int

const (
	// ViolationAuthFailure is an invalid caller API key.
	ViolationAuthFailure ViolationKind = iota
	// ViolationNotFound is a 404 on a non-whitelisted path.
	ViolationNotFound
)

// BlockReason is returned by Check to describe why a caller is blocked.
type BlockReason int

const (
	// ReasonNone means the caller is not blocked.
	ReasonNone BlockReason = iota
	// ReasonTemporary means the caller is inside a temporary block window.
	ReasonTemporary
	// ReasonPermanent means the caller has been permanently blocked.
	ReasonPermanent
)

// Options configures the guard's thresholds; all have documented defaults.
type Options struct {
	// Window is how far back violations are counted. Default 10 minutes.
	Window time.Duration
	// Threshold is the violation count inside Window that triggers a
	// temporary block. Default 10.
	Threshold int
	// TempBlockDuration is the first temp-block length; it doubles on each
	// subsequent temp block within CyclePeriod. Default 30 minutes.
	TempBlockDuration time.Duration
	// CyclePeriod bounds how long temp-block cycles accumulate before being
	// forgotten. Default 24 hours.
	CyclePeriod time.Duration
	// PermanentAfterCycles is the number of consecutive temp blocks inside
	// CyclePeriod that escalates to a permanent block. Default 5.
	PermanentAfterCycles int
	// Whitelist is a set of IPs or CIDRs that never accumulate violations.
	Whitelist []string
}

func (o *Options) setDefaults() {
	if o.Window <= 0 {
		o.Window = 10 * time.Minute
	}
	if o.Threshold <= 0 {
		o.Threshold = 10
	}
	if o.TempBlockDuration <= 0 {
		o.TempBlockDuration = 30 * time.Minute
	}
	if o.CyclePeriod <= 0 {
		o.CyclePeriod = 24 * time.Hour
	}
	if o.PermanentAfterCycles <= 0 {
		o.PermanentAfterCycles = 5
	}
}

type record struct {
	violations      []time.Time
	tempBlockUntil  time.Time
	tempBlockStart  time.Time // start of the current cycle-tracking window
	tempBlockCycles int
	permanent       bool
}

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// Guard implements per-IP temporary/permanent blocking. It shards its
// internal map across a fixed number of locks so one hot IP never
// serializes checks for unrelated callers.
type Guard struct {
	opts         Options
	shards       [shardCount]*shard
	whitelist    []*net.IPNet
	whitelistIPs map[string]struct{}
	stop         chan struct{}
}

// New constructs a Guard and starts its background expiry sweeper.
func New(opts Options) *Guard {
	opts.setDefaults()
	g := &Guard{
		opts:         opts,
		whitelistIPs: make(map[string]struct{}),
		stop:         make(chan struct{}),
	}
	for i := range g.shards {
		g.shards[i] = &shard{records: make(map[string]*record)}
	}
	for _, entry := range opts.Whitelist {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if _, ipnet, err := net.ParseCIDR(entry); err == nil {
				g.whitelist = append(g.whitelist, ipnet)
				continue
			}
			log.Warnf("ipguard: ignoring invalid CIDR in whitelist: %s", entry)
			continue
		}
		g.whitelistIPs[entry] = struct{}{}
	}
	go g.sweepLoop()
	return g
}

// Close stops the background sweeper.
func (g *Guard) Close() {
	close(g.stop)
}

func (g *Guard) shardFor(ip string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ip))
	return g.shards[h.Sum32()%shardCount]
}

func (g *Guard) isWhitelisted(ip string) bool {
	if _, ok := g.whitelistIPs[ip]; ok {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipnet := range g.whitelist {
		if ipnet.Contains(parsed) {
			return true
		}
	}
	return false
}

// Check reports whether ip is currently blocked.
func (g *Guard) Check(ip string) (blocked bool, reason BlockReason, expiresAt time.Time) {
	if g.isWhitelisted(ip) {
		return false, ReasonNone, time.Time{}
	}
	s := g.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[ip]
	if !ok {
		return false, ReasonNone, time.Time{}
	}
	if r.permanent {
		return true, ReasonPermanent, time.Time{}
	}
	if time.Now().Before(r.tempBlockUntil) {
		return true, ReasonTemporary, r.tempBlockUntil
	}
	return false, ReasonNone, time.Time{}
}

// RecordViolation records a violation for ip and applies the state machine:
// clean -> accumulating on first violation, accumulating -> temp_blocked at
// threshold, temp_blocked -> permanent after enough cycles.
func (g *Guard) RecordViolation(ip string, _ ViolationKind) {
	if g.isWhitelisted(ip) {
		return
	}
	now := time.Now()
	s := g.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[ip]
	if !ok {
		r = &record{}
		s.records[ip] = r
	}
	if r.permanent {
		return
	}
	// If a prior temp-block has since expired, this violation is the first
	// of a new accumulation window but the cycle counter survives until
	// CyclePeriod elapses.
	if !r.tempBlockStart.IsZero() && now.Sub(r.tempBlockStart) > g.opts.CyclePeriod {
		r.tempBlockCycles = 0
		r.tempBlockStart = time.Time{}
	}

	cutoff := now.Add(-g.opts.Window)
	kept := r.violations[:0]
	for _, t := range r.violations {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.violations = append(kept, now)

	if len(r.violations) < g.opts.Threshold {
		return
	}

	// Threshold reached: open (or re-open) a temp block, doubling duration
	// for each cycle within CyclePeriod.
	if r.tempBlockStart.IsZero() {
		r.tempBlockStart = now
	}
	duration := g.opts.TempBlockDuration
	for i := 0; i < r.tempBlockCycles; i++ {
		duration *= 2
	}
	r.tempBlockUntil = now.Add(duration)
	r.tempBlockCycles++
	r.violations = nil

	if r.tempBlockCycles >= g.opts.PermanentAfterCycles {
		r.permanent = true
		log.Warnf("ipguard: permanently blocking %s after %d temp-block cycles", ip, r.tempBlockCycles)
	} else {
		log.Warnf("ipguard: temporarily blocking %s for %s (cycle %d)", ip, duration, r.tempBlockCycles)
	}
}

// Unblock forcibly returns ip to the clean state, clearing cycles and any
// permanent flag. Intended for administrative use.
func (g *Guard) Unblock(ip string) {
	s := g.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ip)
}

func (g *Guard) sweepLoop() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			g.sweep()
		case <-g.stop:
			return
		}
	}
}

// sweep expires temp blocks past their deadline, advancing accumulating ->
// temp_blocked's reverse transition (temp_blocked -> accumulating).
func (g *Guard) sweep() {
	now := time.Now()
	for _, s := range g.shards {
		s.mu.Lock()
		for ip, r := range s.records {
			if r.permanent {
				continue
			}
			if !r.tempBlockUntil.IsZero() && now.After(r.tempBlockUntil) && len(r.violations) == 0 {
				// Cycle window stays open (tempBlockStart unchanged) so the
				// next accumulation within CyclePeriod keeps escalating.
				r.tempBlockUntil = time.Time{}
			}
			if r.tempBlockUntil.IsZero() && r.tempBlockCycles == 0 && len(r.violations) == 0 {
				delete(s.records, ip)
			}
		}
		s.mu.Unlock()
	}
}
