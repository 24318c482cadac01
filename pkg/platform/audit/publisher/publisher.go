// Package publisher buffers audit.Event writes in front of a Store so the
// call site (an HTTP handler, a service method) never blocks on storage.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	id "credo/pkg/domain"
	audit "credo/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit when async mode is enabled and the
// buffer has no room; the caller decides whether a dropped audit event is
// acceptable for that code path.
var ErrBufferFull = errors.New("audit buffer full")

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking: events are queued on a channel of
// the given size and drained by a background goroutine. A size of 0 (the
// default, when this option is not passed) keeps Emit synchronous.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size <= 0 {
			return
		}
		p.async = true
		p.buffer = make(chan audit.Event, size)
	}
}

// Publisher is the single entry point domain code uses to record an audit
// trail. In sync mode Emit writes straight through to the Store; in async
// mode it enqueues and returns immediately.
type Publisher struct {
	store audit.Store

	async  bool
	buffer chan audit.Event

	wg     sync.WaitGroup
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.buffer:
			_ = p.store.Append(context.Background(), event)
		case <-p.done:
			// Drain whatever is left before exiting.
			for {
				select {
				case event := <-p.buffer:
					_ = p.store.Append(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit records an event, filling in Timestamp when the caller left it zero.
// In sync mode it writes through and returns the store error; in async mode
// it enqueues, returning ErrBufferFull (or ctx.Err()) if the buffer has no
// room rather than blocking the caller.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if !p.async {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	default:
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List returns the audit trail for a single user, most-recent dependent on
// the underlying Store's ordering.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close stops the drain goroutine, flushing any buffered events first. It is
// a no-op in sync mode.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed || !p.async {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
}
