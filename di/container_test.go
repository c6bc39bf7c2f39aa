package di

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int }

func TestResolveSingletonConstructsOnce(t *testing.T) {
	c := New()
	builds := 0
	c.Register("counter", Singleton, func(c *Container, scope *Scope) (any, error) {
		builds++
		return &counter{}, nil
	})

	a, err := c.Resolve("counter", nil)
	require.NoError(t, err)
	b, err := c.Resolve("counter", nil)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, builds)
}

func TestResolveRequestScopedPerScope(t *testing.T) {
	c := New()
	builds := 0
	c.Register("req", Request, func(c *Container, scope *Scope) (any, error) {
		builds++
		return &counter{n: builds}, nil
	})

	scopeA := NewScope()
	a1, err := c.Resolve("req", scopeA)
	require.NoError(t, err)
	a2, err := c.Resolve("req", scopeA)
	require.NoError(t, err)
	assert.Same(t, a1, a2, "same scope must return the cached instance")

	scopeB := NewScope()
	b1, err := c.Resolve("req", scopeB)
	require.NoError(t, err)
	assert.NotSame(t, a1, b1, "a different scope must construct its own instance")
	assert.Equal(t, 2, builds)
}

func TestResolveTransientConstructsEveryTime(t *testing.T) {
	c := New()
	builds := 0
	c.Register("t", Transient, func(c *Container, scope *Scope) (any, error) {
		builds++
		return &counter{}, nil
	})

	_, err := c.Resolve("t", nil)
	require.NoError(t, err)
	_, err = c.Resolve("t", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
}

func TestResolveUnknownService(t *testing.T) {
	c := New()
	_, err := c.Resolve("missing", nil)
	var unknown *UnknownServiceError
	assert.True(t, errors.As(err, &unknown))
}

func TestResolveCyclicDependencyDetected(t *testing.T) {
	c := New()
	c.Register("a", Request, func(c *Container, scope *Scope) (any, error) {
		return c.Resolve("b", scope)
	})
	c.Register("b", Request, func(c *Container, scope *Scope) (any, error) {
		return c.Resolve("a", scope)
	})

	_, err := c.Resolve("a", NewScope())
	var cyclic *CyclicDependencyError
	require.True(t, errors.As(err, &cyclic))
	assert.Contains(t, cyclic.Cycle, "a")
}

// A cycle between two singletons must fail cleanly rather than deadlock:
// the second registration's sync.Once.Do is reached re-entrantly on the
// same goroutine before the first Do call has returned.
func TestResolveSingletonCycleDetected(t *testing.T) {
	c := New()
	c.Register("a", Singleton, func(c *Container, scope *Scope) (any, error) {
		return c.Resolve("b", scope)
	})
	c.Register("b", Singleton, func(c *Container, scope *Scope) (any, error) {
		return c.Resolve("a", scope)
	})

	_, err := c.Resolve("a", nil)
	var cyclic *CyclicDependencyError
	require.True(t, errors.As(err, &cyclic))
	assert.Contains(t, cyclic.Cycle, "a")
}

// A transient service that resolves itself must fail with
// CyclicDependencyError instead of recursing until the stack overflows.
func TestResolveTransientCycleDetected(t *testing.T) {
	c := New()
	c.Register("self", Transient, func(c *Container, scope *Scope) (any, error) {
		return c.Resolve("self", scope)
	})

	_, err := c.Resolve("self", nil)
	var cyclic *CyclicDependencyError
	require.True(t, errors.As(err, &cyclic))
	assert.Contains(t, cyclic.Cycle, "self")
}

// A mixed chain (transient depending on a singleton that depends back on
// the transient) shares one resolution stack across lifecycles because the
// ephemeral scope created for the top-level nil-scope call is threaded
// through every nested Resolve call.
func TestResolveCycleDetectedAcrossLifecycles(t *testing.T) {
	c := New()
	c.Register("outer", Transient, func(c *Container, scope *Scope) (any, error) {
		return c.Resolve("inner", scope)
	})
	c.Register("inner", Singleton, func(c *Container, scope *Scope) (any, error) {
		return c.Resolve("outer", scope)
	})

	_, err := c.Resolve("outer", nil)
	var cyclic *CyclicDependencyError
	require.True(t, errors.As(err, &cyclic))
	assert.Contains(t, cyclic.Cycle, "outer")
}

func TestConstructionPanicIsRecovered(t *testing.T) {
	c := New()
	c.Register("boom", Transient, func(c *Container, scope *Scope) (any, error) {
		panic("kaboom")
	})

	_, err := c.Resolve("boom", nil)
	var constructionErr *ConstructionError
	require.True(t, errors.As(err, &constructionErr))
	assert.Equal(t, "boom", constructionErr.Name)
}
