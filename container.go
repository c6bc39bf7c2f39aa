package brisa

import "github.com/savsgio/brisa/di"

// Container is the server's dependency-injection registry.
type Container = di.Container

// NewContainer creates an empty DI container.
func NewContainer() *Container { return di.New() }

// Scope aliases used for registering services by lifecycle.
const (
	Singleton = di.Singleton
	RequestScoped = di.Request
	Transient = di.Transient
)

// requestScope wraps the DI per-request resolution scope and is attached to
// every RequestCtx at dispatch time, discarded at response completion.
type requestScope struct {
	di *di.Scope
}

func newRequestScope() *requestScope {
	return &requestScope{di: di.NewScope()}
}

// Resolve looks up a service by name from the server's container, using
// this request's resolution scope for request-scoped services.
func (s *requestScope) Resolve(c *Container, name string) (any, error) {
	return c.Resolve(name, s.di)
}
