package cache

import "testing"

func TestSignatureCache_StoreAndGet(t *testing.T) {
	c := New(Options{Mode: CacheAlways})

	c.Store("session-1", "claude-sonnet-4-5", "sig-abc", "some thought text")

	entry, ok := c.Get("session-1", "claude-sonnet-4-5")
	if !ok {
		t.Fatal("expected entry to be found")
	}
	if entry.Signature != "sig-abc" || entry.PairedThoughtText != "some thought text" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestSignatureCache_KeyedBySessionAndModel(t *testing.T) {
	c := New(Options{Mode: CacheAlways})

	c.Store("session-1", "claude-sonnet-4-5", "sig-1", "text-1")
	c.Store("session-1", "gemini-2.5-pro", "sig-2", "text-2")
	c.Store("session-2", "claude-sonnet-4-5", "sig-3", "text-3")

	e1, ok1 := c.Get("session-1", "claude-sonnet-4-5")
	e2, ok2 := c.Get("session-1", "gemini-2.5-pro")
	e3, ok3 := c.Get("session-2", "claude-sonnet-4-5")
	if !ok1 || !ok2 || !ok3 {
		t.Fatal("expected all three distinct keys to be present")
	}
	if e1.Signature != "sig-1" || e2.Signature != "sig-2" || e3.Signature != "sig-3" {
		t.Errorf("cross-key contamination: %+v %+v %+v", e1, e2, e3)
	}
}

func TestSignatureCache_NotFound(t *testing.T) {
	c := New(Options{Mode: CacheAlways})
	if _, ok := c.Get("missing", "missing"); ok {
		t.Error("expected no entry for unknown key")
	}
}

func TestSignatureCache_EmptyInputsAreNoOps(t *testing.T) {
	c := New(Options{Mode: CacheAlways})

	c.Store("s", "m", "", "text")
	c.Store("s", "m", "sig", "")
	if _, ok := c.Get("s", "m"); ok {
		t.Error("expected empty signature/text to be rejected")
	}
}

func TestSignatureCache_LastWriterWins(t *testing.T) {
	c := New(Options{Mode: CacheAlways})

	c.Store("s", "m", "sig-first", "text-first")
	c.Store("s", "m", "sig-second", "text-second")

	entry, ok := c.Get("s", "m")
	if !ok || entry.Signature != "sig-second" {
		t.Errorf("expected last write to win, got %+v", entry)
	}
}

func TestSignatureCache_Clear(t *testing.T) {
	c := New(Options{Mode: CacheAlways})

	c.Store("s", "m1", "sig-1", "text-1")
	c.Store("s", "m2", "sig-2", "text-2")

	c.Clear("s", "m1")
	if _, ok := c.Get("s", "m1"); ok {
		t.Error("expected m1 entry to be cleared")
	}
	if _, ok := c.Get("s", "m2"); !ok {
		t.Error("expected m2 entry to survive a model-scoped clear")
	}

	c.Clear("s", "")
	if _, ok := c.Get("s", "m2"); ok {
		t.Error("expected session-wide clear to remove remaining entries")
	}
}

func TestSignatureCache_EvictsOldestBeyondMaxEntries(t *testing.T) {
	c := New(Options{Mode: CacheAlways, MaxEntries: 2})

	c.Store("s", "m1", "sig-1", "text-1")
	c.Store("s", "m2", "sig-2", "text-2")
	c.Store("s", "m3", "sig-3", "text-3")

	if _, ok := c.Get("s", "m1"); ok {
		t.Error("expected oldest entry to be evicted once over capacity")
	}
	if _, ok := c.Get("s", "m3"); !ok {
		t.Error("expected most recent entry to survive")
	}
}

func TestSignatureCache_ShouldCacheModes(t *testing.T) {
	always := New(Options{Mode: CacheAlways})
	if !always.ShouldCache(false, false) {
		t.Error("CacheAlways should cache every observation")
	}

	never := New(Options{Mode: CacheNever})
	if never.ShouldCache(true, true) {
		t.Error("CacheNever should never cache")
	}

	conditional := New(Options{Mode: CacheToolCallsOrImage})
	if conditional.ShouldCache(false, false) {
		t.Error("CacheToolCallsOrImage should skip plain text responses")
	}
	if !conditional.ShouldCache(true, false) {
		t.Error("CacheToolCallsOrImage should cache tool-call responses")
	}
	if !conditional.ShouldCache(false, true) {
		t.Error("CacheToolCallsOrImage should cache image-model responses")
	}
}
