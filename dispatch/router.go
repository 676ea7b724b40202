// Package dispatch connects attribute store change streams to the engine's
// reactive handlers. A Router owns the subscriptions and the goroutines
// draining them, routing each change to a fixed handler set registered at
// construction time.
//
// The router is the only place where external attribute mutations enter the
// engine: a changed matching attribute triggers a waiting pool rescan, a
// changed readiness gate triggers a lifecycle recheck. Handlers run on the
// router's goroutines and must not block indefinitely.
package dispatch

import (
	"context"
	"sync"

	"github.com/hupe1980/groupmesh/core"
	"github.com/hupe1980/groupmesh/logging"
)

// Handler processes one attribute change.
type Handler func(ctx context.Context, change core.Change)

// Options configures a Router.
type Options struct {
	// Logger receives routing logs. Defaults to NoOpLogger.
	Logger logging.Logger
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Router subscribes handlers to attribute change streams and drains each
// stream on its own goroutine. Registration is expected during wiring,
// before changes start flowing; Close releases all subscriptions and waits
// for in-flight handlers.
type Router struct {
	store  core.AttributeStore
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cancels []func()
	closed  bool
	wg      sync.WaitGroup
}

// NewRouter creates a router over the given store.
func NewRouter(store core.AttributeStore, optFns ...func(o *Options)) *Router {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{store: store, logger: opts.Logger, ctx: ctx, cancel: cancel}
}

// Handle subscribes the handler to changes of the given entity kind,
// optionally filtered to one attribute key (empty key matches all). Each
// registration drains its own stream, so slow handlers only delay their own
// subscription.
func (r *Router) Handle(kind core.EntityKind, key string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	ch, cancel := r.store.Subscribe(kind, key)
	r.cancels = append(r.cancels, cancel)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for change := range ch {
			if r.ctx.Err() != nil {
				return
			}
			handler(r.ctx, change)
		}
	}()
}

// Close releases all subscriptions and waits for the drain goroutines to
// finish. Safe to call more than once.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	cancels := r.cancels
	r.cancels = nil
	r.mu.Unlock()

	r.cancel()
	for _, cancel := range cancels {
		cancel()
	}
	r.wg.Wait()
}
