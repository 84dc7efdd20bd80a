package mainqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func runAsync(ctx context.Context, q *Queue) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestQueue_FIFOFromManyProducers(t *testing.T) {
	q := New()
	done := runAsync(context.Background(), q)

	const producers = 8
	const perProducer = 200

	var mu sync.Mutex
	last := make(map[int]int)
	var outOfOrder atomic.Int32

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				i := i
				q.Dispatch(func() {
					mu.Lock()
					defer mu.Unlock()
					if prev, ok := last[p]; ok && prev >= i {
						outOfOrder.Add(1)
					}
					last[p] = i
				})
			}
		}(p)
	}
	wg.Wait()
	q.Close()
	waitDone(t, done)

	if got := q.Executed(); got != producers*perProducer {
		t.Errorf("Executed() = %d, want %d", got, producers*perProducer)
	}
	if n := outOfOrder.Load(); n != 0 {
		t.Errorf("%d closures ran out of per-producer order", n)
	}
}

func TestQueue_NeverConcurrent(t *testing.T) {
	q := New()
	done := runAsync(context.Background(), q)

	var active atomic.Int32
	var overlap atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Dispatch(func() {
				if active.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(100 * time.Microsecond)
				active.Add(-1)
			})
		}()
	}
	wg.Wait()
	q.Close()
	waitDone(t, done)

	if overlap.Load() {
		t.Error("two closures ran concurrently")
	}
}

func TestQueue_DeferredNotDropped(t *testing.T) {
	q := New()

	// Queue work before anyone is draining
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		q.Dispatch(func() { ran.Add(1) })
	}
	if q.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", q.Len())
	}

	q.Close()
	done := runAsync(context.Background(), q)
	waitDone(t, done)

	if ran.Load() != 10 {
		t.Errorf("ran %d closures, want 10", ran.Load())
	}
}

func TestQueue_DispatchAfterClose(t *testing.T) {
	q := New()
	q.Close()

	if q.Dispatch(func() {}) {
		t.Error("Dispatch() after Close() returned true")
	}
	if q.Dispatch(nil) {
		t.Error("Dispatch(nil) returned true")
	}
}

func TestQueue_RunStopsOnCancel(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, q)

	ran := make(chan struct{})
	q.Dispatch(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("closure did not run")
	}

	cancel()
	waitDone(t, done)
}

func TestQueue_SingleRunner(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	q.Dispatch(func() { close(started) })
	first := runAsync(ctx, q)
	<-started

	// A second Run returns immediately while the first is active
	second := runAsync(ctx, q)
	waitDone(t, second)

	cancel()
	waitDone(t, first)
}
