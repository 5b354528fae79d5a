package queue

import (
	"sync"
	"testing"
	"time"
)

func TestQueuePreservesOrder(t *testing.T) {
	q := New[int]()
	for i := 1; i <= 3; i++ {
		q.Put(i)
	}

	for want := 1; want <= 3; want++ {
		got, status := q.Get(10 * time.Millisecond)
		if status != Item {
			t.Fatalf("expected item, got %s", status)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestQueueGetTimesOutWhenEmpty(t *testing.T) {
	q := New[string]()
	start := time.Now()
	if _, status := q.Get(20 * time.Millisecond); status != Empty {
		t.Fatalf("expected empty, got %s", status)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("expected Get to wait for the timeout, returned after %s", elapsed)
	}
}

func TestQueueSentinelIsReportedInPlace(t *testing.T) {
	q := New[int]()
	q.Put(1)
	q.PutSentinel()
	q.Put(2)

	if v, status := q.Get(time.Millisecond); status != Item || v != 1 {
		t.Fatalf("expected item 1, got %d (%s)", v, status)
	}
	if _, status := q.Get(time.Millisecond); status != Sentinel {
		t.Fatalf("expected sentinel, got %s", status)
	}
	if v, status := q.Get(time.Millisecond); status != Item || v != 2 {
		t.Fatalf("expected item 2, got %d (%s)", v, status)
	}
}

func TestQueueDrainSkipsSentinels(t *testing.T) {
	q := New[int]()
	q.Put(1)
	q.PutSentinel()
	q.Put(2)

	got := q.Drain()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected drain result %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue to be empty after drain")
	}
}

func TestQueueWakesBlockedConsumer(t *testing.T) {
	q := New[int]()
	done := make(chan int, 1)
	go func() {
		v, _ := q.Get(time.Second)
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.Put(42)

	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("consumer was not woken by Put")
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Put(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		_, status := q.Get(0)
		if status == Empty {
			break
		}
		count++
	}
	if count != 400 {
		t.Fatalf("expected 400 items, got %d", count)
	}
}
