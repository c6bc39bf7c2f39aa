package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_IgnoresDenylistedQueryParamsAndOrdersRest(t *testing.T) {
	headerOf := func(string) string { return "" }

	k1 := Key("GET", "/a", "x=1&utm_source=ad&y=2", nil, headerOf, []string{"utm_source"})
	k2 := Key("GET", "/a", "y=2&x=1", nil, headerOf, []string{"utm_source"})
	assert.Equal(t, k1, k2)

	k3 := Key("GET", "/a", "x=1&y=3", nil, headerOf, []string{"utm_source"})
	assert.NotEqual(t, k1, k3)
}

func TestKey_VariesByHeader(t *testing.T) {
	accept := map[string]string{"Accept": "application/json"}
	acceptOther := map[string]string{"Accept": "text/html"}

	k1 := Key("GET", "/a", "", []string{"Accept"}, func(n string) string { return accept[n] }, nil)
	k2 := Key("GET", "/a", "", []string{"Accept"}, func(n string) string { return acceptOther[n] }, nil)
	assert.NotEqual(t, k1, k2)
}

func TestL1_HitWithinTTL_MissAfterExpiry(t *testing.T) {
	l1c := newL1(16, 0, 1<<20)

	e := Entry{Body: []byte("H1"), Status: 200, StoredAt: time.Now(), TTL: 50 * time.Millisecond, Size: 2}
	l1c.Set("k", e)

	got, ok := l1c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "H1", string(got.Body))

	time.Sleep(80 * time.Millisecond)
	_, ok = l1c.Get("k")
	assert.False(t, ok)
}

func TestL1_EvictsOverByteBudget(t *testing.T) {
	l1c := newL1(100, time.Hour, 10) // 10 byte budget

	l1c.Set("a", Entry{Body: make([]byte, 6), StoredAt: time.Now(), TTL: time.Hour, Size: 6})
	l1c.Set("b", Entry{Body: make([]byte, 6), StoredAt: time.Now(), TTL: time.Hour, Size: 6})

	// "a" should have been evicted to stay under the 10-byte budget.
	_, aOK := l1c.Get("a")
	_, bOK := l1c.Get("b")
	assert.False(t, aOK)
	assert.True(t, bOK)
}

func TestTiered_GetOrCompute_SingleFlightDedupesConcurrentMisses(t *testing.T) {
	tc, err := New(Config{L1Enabled: true, SingleFlight: true})
	require.NoError(t, err)

	var invocations atomic.Int64
	compute := func() (Entry, error) {
		invocations.Add(1)
		time.Sleep(20 * time.Millisecond)
		return Entry{Body: []byte("H1"), Status: 200}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := tc.GetOrCompute("k", time.Minute, compute)
			require.NoError(t, err)
			assert.Equal(t, "H1", string(e.Body))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), invocations.Load())
}

func TestTiered_SetThenGet_RoundTrips(t *testing.T) {
	tc, err := New(Config{L1Enabled: true})
	require.NoError(t, err)

	e := Entry{Body: []byte("hello"), Status: 200, StoredAt: time.Now(), TTL: time.Minute, Size: 5}
	tc.Set("k", e)

	got, ok := tc.Get("k")
	require.True(t, ok)
	assert.Equal(t, "hello", string(got.Body))
	assert.Equal(t, 200, got.Status)
}
