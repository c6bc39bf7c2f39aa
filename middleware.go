package brisa

import (
	"reflect"
	"sort"
)

// MiddlewareFunc has the exact same shape as View: it receives the evolving
// request/context and returns either nil ("continue") or an error. A
// pre-phase middleware additionally short-circuits the chain by writing a
// response onto ctx and calling ctx.Stop() (see runChain).
type MiddlewareFunc = View

// CancelAware declares an optional OnCancel hook for middleware. The
// dispatcher does not call it: no middleware is notified when a client
// disconnects mid-request.
type CancelAware interface {
	OnCancel(ctx *RequestCtx)
}

// Phase is the execution phase of a middleware entry.
type Phase int

const (
	PhasePre Phase = iota
	PhasePost
)

type middlewareEntry struct {
	fn       MiddlewareFunc
	priority int
	phase    Phase
	name     string
	order    int // registration sequence, used to break priority ties
}

func funcPointer(fn MiddlewareFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Middlewares is a collection of per-route middleware. Before/After sit
// between global pre and the handler, and between the handler and global
// post, respectively, preserving their own registration order. Skip names
// global middleware functions (compared by function pointer) that must not
// run for this route.
type Middlewares struct {
	Before []MiddlewareFunc
	After  []MiddlewareFunc
	Skip   []MiddlewareFunc
}

// middlewareEngine holds a router's globally registered middleware, sorted
// by priority with registration-order tie-breaks.
type middlewareEngine struct {
	before []middlewareEntry
	after  []middlewareEntry
	seq    int
}

func (e *middlewareEngine) addBefore(fn MiddlewareFunc, name string, priority int) {
	e.seq++
	e.before = append(e.before, middlewareEntry{fn: fn, priority: priority, phase: PhasePre, name: name, order: e.seq})
	sortStableByPriority(e.before)
}

func (e *middlewareEngine) addAfter(fn MiddlewareFunc, name string, priority int) {
	e.seq++
	e.after = append(e.after, middlewareEntry{fn: fn, priority: priority, phase: PhasePost, name: name, order: e.seq})
	sortStableByPriority(e.after)
}

func sortStableByPriority(entries []middlewareEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].order < entries[j].order
	})
}

// filterSkipped removes entries whose fn is in the skip list, compared by
// function pointer so middleware instances can be identified without
// requiring comparable closures.
func filterSkipped(entries []middlewareEntry, skip []MiddlewareFunc) []middlewareEntry {
	if len(skip) == 0 {
		return entries
	}
	skipPtrs := make(map[uintptr]struct{}, len(skip))
	for _, fn := range skip {
		skipPtrs[funcPointer(fn)] = struct{}{}
	}
	out := entries[:0:0]
	for _, e := range entries {
		if _, skipped := skipPtrs[funcPointer(e.fn)]; skipped {
			continue
		}
		out = append(out, e)
	}
	return out
}

// runChain executes the fully compiled chain for one request:
//
//	globalPre (priority order) -> routePre (registration order) ->
//	  handler (unless short-circuited) ->
//	routePost (registration order) -> globalPost (priority order)
//
// A pre-middleware returning a non-nil response (ctx.skipView == true after
// it runs) short-circuits the rest of the pre-chain and the handler; the
// post-chain still runs over whatever response is current.
func runChain(ctx *RequestCtx, globalPre, globalPost []middlewareEntry, route *compiledRoute, logger Logger) error {
	if len(route.middlewares.Skip) > 0 {
		globalPre = filterSkipped(globalPre, route.middlewares.Skip)
		globalPost = filterSkipped(globalPost, route.middlewares.Skip)
	}

	for _, e := range globalPre {
		if err := e.fn(ctx); err != nil {
			return err
		}
		if ctx.skipView {
			break
		}
	}

	if !ctx.skipView {
		for _, fn := range route.middlewares.Before {
			if err := fn(ctx); err != nil {
				return err
			}
			if ctx.skipView {
				break
			}
		}
	}

	if !ctx.skipView {
		if err := route.handler(ctx); err != nil {
			return err
		}
	}

	for _, fn := range route.middlewares.After {
		if err := safePostCall(fn, ctx, logger); err != nil {
			// Errors in post-middleware do not overwrite the response; they
			// are only logged.
			continue
		}
	}

	for _, e := range globalPost {
		_ = safePostCall(e.fn, ctx, logger)
	}

	return nil
}

// safePostCall runs a post-phase middleware, recovering panics and logging
// errors without letting them overwrite the response already produced.
func safePostCall(fn MiddlewareFunc, ctx *RequestCtx, logger Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Printf("post-middleware panic recovered: %v", r)
			}
			err = Errorf(KindHandler, "post-middleware panic: %v", r)
		}
	}()
	err = fn(ctx)
	if err != nil && logger != nil {
		logger.Printf("post-middleware error (response unaffected): %v", err)
	}
	return err
}
