package cache

import (
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Tiered is a multi-level response cache: L1 always present when enabled,
// L2/L3 optional and best-effort, with promotion of a slower hit into the
// faster tiers it skipped.
type Tiered struct {
	cfg Config

	l1 *l1
	l2 *l2
	l3 *l3

	group singleflight.Group
}

// New builds a Tiered cache from cfg. L2/L3 are only constructed when
// enabled; their construction errors (e.g. a locked L3 directory) are
// returned so misconfiguration fails loudly at startup rather than at the
// first request.
func New(cfg Config) (*Tiered, error) {
	cfg = WithDefaults(cfg)
	t := &Tiered{cfg: cfg}

	if cfg.L1Enabled {
		t.l1 = newL1(cfg.L1MaxEntries, cfg.L1TTL, cfg.L1MaxBytes)
	}
	if cfg.L2Enabled {
		t.l2 = newL2(cfg.L2Addr, cfg.L2TTL)
	}
	if cfg.L3Enabled {
		l3c, err := newL3(cfg.L3Dir, cfg.L3MaxSize, cfg.L3TTL)
		if err != nil {
			return nil, err
		}
		t.l3 = l3c
	}

	return t, nil
}

// Close releases any held resources (redis pool, L3 lock file).
func (t *Tiered) Close() error {
	if t.l2 != nil {
		t.l2.Close()
	}
	if t.l3 != nil {
		t.l3.Close()
	}
	return nil
}

// Get probes L1, then L2, then L3, promoting a hit from a slower tier into
// the faster tiers it skipped.
func (t *Tiered) Get(key string) (Entry, bool) {
	if t.l1 != nil {
		if e, ok := t.l1.Get(key); ok {
			return e, true
		}
	}

	if t.l2 != nil {
		if e, ok := t.l2.Get(key); ok {
			t.promote(key, e, true, false)
			return e, true
		}
	}

	if t.l3 != nil {
		if e, ok := t.l3.Get(key); ok {
			t.promote(key, e, true, true)
			return e, true
		}
	}

	return Entry{}, false
}

// promote writes a slower-tier hit into the faster tiers, capping its TTL
// at L1's configured TTL so a long-lived L3 entry doesn't linger in L1
// past L1's own freshness window.
func (t *Tiered) promote(key string, e Entry, toL1, toL2 bool) {
	capped := e
	if capped.TTL > t.cfg.L1TTL {
		capped.TTL = t.cfg.L1TTL
	}
	if toL1 && t.l1 != nil {
		t.l1.Set(key, capped)
	}
	if toL2 && t.l2 != nil {
		t.l2.Set(key, e)
	}
}

// Set inserts e into every enabled tier.
func (t *Tiered) Set(key string, e Entry) {
	if t.l1 != nil {
		t.l1.Set(key, e)
	}
	if t.l2 != nil {
		t.l2.Set(key, e)
	}
	if t.l3 != nil {
		t.l3.Set(key, e)
	}
}

// Delete removes key from every enabled tier.
func (t *Tiered) Delete(key string) {
	if t.l1 != nil {
		t.l1.Delete(key)
	}
	if t.l2 != nil {
		t.l2.Delete(key)
	}
	if t.l3 != nil {
		t.l3.Delete(key)
	}
}

// Clear empties the L1 tier (the only tier with a cheap bulk-clear
// primitive); L2/L3 bulk clears are left to their own administration
// tooling rather than fanned out destructively from here.
func (t *Tiered) Clear() {
	if t.l1 != nil {
		t.l1.Clear()
	}
}

// GetOrCompute resolves key from the tiers, or — on a miss — runs compute
// and stores the result into every enabled tier before returning it. When
// Config.SingleFlight is set, concurrent callers sharing the same key run
// compute once and share its result; otherwise each missing caller runs
// compute itself.
func (t *Tiered) GetOrCompute(key string, ttl time.Duration, compute func() (Entry, error)) (Entry, error) {
	if e, ok := t.Get(key); ok {
		return e, nil
	}

	if !t.cfg.SingleFlight {
		e, err := compute()
		if err != nil {
			return Entry{}, err
		}
		e.Key = key
		if e.TTL == 0 {
			e.TTL = ttl
		}
		if e.StoredAt.IsZero() {
			e.StoredAt = time.Now()
		}
		if !e.NoStore {
			t.Set(key, e)
		}
		return e, nil
	}

	v, err, _ := t.group.Do(key, func() (interface{}, error) {
		if e, ok := t.Get(key); ok {
			return e, nil
		}
		e, err := compute()
		if err != nil {
			return Entry{}, err
		}
		e.Key = key
		if e.TTL == 0 {
			e.TTL = ttl
		}
		if e.StoredAt.IsZero() {
			e.StoredAt = time.Now()
		}
		if !e.NoStore {
			t.Set(key, e)
		}
		return e, nil
	})
	if err != nil {
		return Entry{}, err
	}
	e, ok := v.(Entry)
	if !ok {
		return Entry{}, fmt.Errorf("cache: unexpected singleflight result type %T", v)
	}
	return e, nil
}
