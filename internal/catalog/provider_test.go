package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestProviderLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	p := NewProvider(func(context.Context) (Lookup, error) {
		calls.Add(1)
		<-release
		return NewStatic(NewComponentSchema("a", nil, nil)), nil
	})

	if !errors.Is(p.Err(), ErrNotLoaded) {
		t.Errorf("Err pending = %v, want ErrNotLoaded", p.Err())
	}

	p.Start()
	p.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await while pending = %v, want deadline exceeded", err)
	}

	close(release)
	l, err := p.Await(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Component("a"); !ok {
		t.Error("component a missing")
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err after load = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("load called %d times, want 1", n)
	}
	select {
	case <-p.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestProviderError(t *testing.T) {
	boom := errors.New("boom")
	p := NewProvider(func(context.Context) (Lookup, error) { return nil, boom })

	called := false
	_, err := Apply(context.Background(), p, func(Lookup) int {
		called = true
		return 1
	})
	if !errors.Is(err, boom) {
		t.Errorf("Apply error = %v, want boom", err)
	}
	if called {
		t.Error("Apply ran fn after a failed load")
	}
	if !errors.Is(p.Err(), boom) {
		t.Errorf("Err = %v", p.Err())
	}
}

func TestProviderNilLookupIsEmpty(t *testing.T) {
	p := NewProvider(func(context.Context) (Lookup, error) { return nil, nil })
	n, err := Apply(context.Background(), p, func(l Lookup) int { return len(l.ComponentIDs()) })
	if err != nil || n != 0 {
		t.Errorf("Apply = %d, %v", n, err)
	}
}

func TestPreloaded(t *testing.T) {
	p := Preloaded(Empty)
	p.Start()
	select {
	case <-p.Done():
	default:
		t.Error("Preloaded not done")
	}
	if err := p.Err(); err != nil {
		t.Errorf("Preloaded Err = %v", err)
	}
	if p.LoadDuration() != 0 {
		t.Errorf("LoadDuration = %v", p.LoadDuration())
	}
	got, err := Apply(context.Background(), p, func(l Lookup) string { return "ran" })
	if err != nil || got != "ran" {
		t.Errorf("Apply = %q, %v", got, err)
	}
}
