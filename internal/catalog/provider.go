package catalog

import (
	"context"
	"sync"
	"time"
)

// LoadFunc produces the catalog. It runs at most once per Provider.
type LoadFunc func(ctx context.Context) (Lookup, error)

// Provider loads the catalog lazily and asynchronously on first use and
// hands the same immutable Lookup to every caller afterwards.
//
// Callers that need the catalog before it is ready block in Await rather
// than failing; once loaded, reads need no locking.
type Provider struct {
	load LoadFunc
	once sync.Once
	done chan struct{}

	lookup   Lookup
	err      error
	duration time.Duration
}

// NewProvider creates a provider that calls load on first use.
func NewProvider(load LoadFunc) *Provider {
	return &Provider{
		load: load,
		done: make(chan struct{}),
	}
}

// Preloaded returns a provider that is already resolved to l.
func Preloaded(l Lookup) *Provider {
	p := &Provider{done: make(chan struct{}), lookup: l}
	p.once.Do(func() { close(p.done) })
	return p
}

// Start begins loading in the background. Calling it again is a no-op.
func (p *Provider) Start() {
	p.once.Do(func() {
		go func() {
			start := time.Now()
			l, err := p.load(context.Background())
			if err == nil && l == nil {
				l = Empty
			}
			p.lookup, p.err = l, err
			p.duration = time.Since(start)
			close(p.done)
		}()
	})
}

// Done is closed once loading has finished, successfully or not.
func (p *Provider) Done() <-chan struct{} {
	return p.done
}

// Await starts loading if needed and waits for the result.
func (p *Provider) Await(ctx context.Context) (Lookup, error) {
	p.Start()
	select {
	case <-p.done:
		return p.lookup, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the load failure, or ErrNotLoaded while loading is pending.
func (p *Provider) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return ErrNotLoaded
	}
}

// LoadDuration reports how long loading took; zero while pending.
func (p *Provider) LoadDuration() time.Duration {
	select {
	case <-p.done:
		return p.duration
	default:
		return 0
	}
}

// Apply is a computation deferred until the catalog is available: it waits
// for p, then runs fn to completion. When the catalog failed to load, fn is
// not called and the zero value is returned with the load error.
func Apply[T any](ctx context.Context, p *Provider, fn func(Lookup) T) (T, error) {
	var zero T
	l, err := p.Await(ctx)
	if err != nil {
		return zero, err
	}
	return fn(l), nil
}
