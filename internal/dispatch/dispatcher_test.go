package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mpetrov/chatbridge/internal/dispatch"
)

func TestDispatcherSerializesSameKey(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.WithRate(60000, 1000))

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.Do(context.Background(), 1, func(context.Context) error {
				current := atomic.AddInt32(&inFlight, 1)
				for {
					top := atomic.LoadInt32(&maxInFlight)
					if current <= top || atomic.CompareAndSwapInt32(&maxInFlight, top, current) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("same-key calls overlapped: max in-flight = %d, want 1", got)
	}
}

func TestDispatcherAllowsDistinctKeysConcurrently(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.WithRate(60000, 1000))

	first := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- d.Do(context.Background(), 1, func(context.Context) error {
			close(first)
			<-release
			return nil
		})
	}()

	<-first

	// While user 1 is mid-turn, user 2 must still get through.
	completed := make(chan struct{})
	go func() {
		_ = d.Do(context.Background(), 2, func(context.Context) error { return nil })
		close(completed)
	}()

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("distinct-key call blocked behind another user's turn")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatcherRateLimits(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.WithRate(1, 2))

	ran := 0
	fn := func(context.Context) error { ran++; return nil }

	if err := d.Do(context.Background(), 1, fn); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	if err := d.Do(context.Background(), 1, fn); err != nil {
		t.Fatalf("burst call should pass: %v", err)
	}

	err := d.Do(context.Background(), 1, fn)
	if !errors.Is(err, dispatch.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if ran != 2 {
		t.Errorf("over-limit call must not run fn, ran = %d", ran)
	}

	// Another user has their own budget.
	if err := d.Do(context.Background(), 2, fn); err != nil {
		t.Errorf("different user should not share the limit: %v", err)
	}
}

func TestDispatcherPropagatesFnError(t *testing.T) {
	d := dispatch.NewDispatcher()

	sentinel := errors.New("turn failed")
	err := d.Do(context.Background(), 1, func(context.Context) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}
}
