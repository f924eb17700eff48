package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	texts []string
	times []time.Time
	fail  map[string]bool
	got   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fail: map[string]bool{}, got: make(chan struct{}, 1024)}
}

func (r *recorder) Deliver(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.texts = append(r.texts, msg.Text)
	r.times = append(r.times, time.Now())
	fail := r.fail[msg.Text]
	r.mu.Unlock()
	r.got <- struct{}{}
	if fail {
		return errors.New("target unknown")
	}
	return nil
}

func (r *recorder) waitFor(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-deadline:
			t.Fatalf("timed out after %d of %d deliveries", i, n)
		}
	}
}

func (r *recorder) snapshot() ([]string, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...), append([]time.Time(nil), r.times...)
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Enqueue(Message{Target: "t", Text: fmt.Sprint(i)})
	}
	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}
	for i := 0; i < 5; i++ {
		msg, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if msg.Text != fmt.Sprint(i) {
			t.Errorf("dequeue %d got %q", i, msg.Text)
		}
		if msg.EnqueuedAt.IsZero() {
			t.Errorf("EnqueuedAt not stamped")
		}
	}
}

func TestQueueDequeueWaitsForEnqueue(t *testing.T) {
	q := NewQueue()
	done := make(chan Message)
	go func() {
		msg, err := q.Dequeue(context.Background())
		if err == nil {
			done <- msg
		}
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned on empty queue")
	case <-time.After(30 * time.Millisecond):
	}

	q.Enqueue(Message{Text: "wake"})
	select {
	case msg := <-done:
		if msg.Text != "wake" {
			t.Errorf("got %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue was not woken by Enqueue")
	}
}

func TestQueueDequeueContextCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestQueueEnqueueNeverBlocks(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	start := time.Now()
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Enqueue(Message{Text: "x"})
			}
		}()
	}
	wg.Wait()
	if q.Len() != 8000 {
		t.Errorf("Len() = %d, want 8000", q.Len())
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("enqueue without a consumer took %v", time.Since(start))
	}
}

func TestWorkerOrderAndCooldown(t *testing.T) {
	for _, tc := range []struct {
		n        int
		cooldown time.Duration
	}{
		{1, 10 * time.Millisecond},
		{4, 25 * time.Millisecond},
		{6, 15 * time.Millisecond},
	} {
		t.Run(fmt.Sprintf("n=%d/c=%v", tc.n, tc.cooldown), func(t *testing.T) {
			q := NewQueue()
			rec := newRecorder()
			for i := 0; i < tc.n; i++ {
				q.Enqueue(Message{Target: "chan", Text: fmt.Sprint(i)})
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go (&Worker{Queue: q, Deliverer: rec, Cooldown: tc.cooldown}).Run(ctx)

			rec.waitFor(t, tc.n, 5*time.Second)
			texts, times := rec.snapshot()
			for k := 0; k < tc.n; k++ {
				if texts[k] != fmt.Sprint(k) {
					t.Errorf("delivery %d = %q, want %d", k, texts[k], k)
				}
				if earliest := time.Duration(k) * tc.cooldown; times[k].Sub(times[0]) < earliest {
					t.Errorf("delivery %d at +%v, want >= %v", k, times[k].Sub(times[0]), earliest)
				}
			}
		})
	}
}

func TestWorkerFailureDoesNotRetry(t *testing.T) {
	q := NewQueue()
	rec := newRecorder()
	rec.fail["bad"] = true
	q.Enqueue(Message{Text: "bad"})
	q.Enqueue(Message{Text: "good"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go (&Worker{Queue: q, Deliverer: rec, Cooldown: 10 * time.Millisecond}).Run(ctx)

	rec.waitFor(t, 2, 2*time.Second)
	time.Sleep(50 * time.Millisecond)
	texts, times := rec.snapshot()
	if len(texts) != 2 || texts[0] != "bad" || texts[1] != "good" {
		t.Fatalf("deliveries = %v, want [bad good]", texts)
	}
	if times[1].Sub(times[0]) < 10*time.Millisecond {
		t.Errorf("cooldown skipped after failure: %v", times[1].Sub(times[0]))
	}
}

func TestWorkerWaitsForGate(t *testing.T) {
	q := NewQueue()
	rec := newRecorder()
	gate := NewGate("twitch", "bancho")
	q.Enqueue(Message{Text: "early"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go (&Worker{Queue: q, Deliverer: rec, Cooldown: time.Millisecond, Gate: gate}).Run(ctx)

	gate.Signal("twitch")
	time.Sleep(30 * time.Millisecond)
	if texts, _ := rec.snapshot(); len(texts) != 0 {
		t.Fatalf("worker delivered before gate opened: %v", texts)
	}

	gate.Signal("bancho")
	rec.waitFor(t, 1, time.Second)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		(&Worker{Queue: q, Deliverer: newRecorder(), Cooldown: time.Hour}).Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestGate(t *testing.T) {
	g := NewGate("a", "b")
	if g.Ready() {
		t.Fatal("new gate should be closed")
	}
	g.Signal("a")
	g.Signal("a")
	g.Signal("unknown")
	if g.Ready() {
		t.Fatal("gate opened with one pending signal")
	}
	if st := g.Status(); !st["a"] || st["b"] {
		t.Errorf("status = %v", st)
	}
	g.Signal("b")
	if !g.Ready() {
		t.Fatal("gate should be open")
	}
	g.Signal("b")
	if err := g.Wait(context.Background()); err != nil {
		t.Errorf("Wait on open gate: %v", err)
	}

	if !NewGate().Ready() {
		t.Error("gate without names should start open")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewGate("x").Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait with cancelled ctx = %v", err)
	}
}

func TestDelivererFunc(t *testing.T) {
	var got string
	d := DelivererFunc(func(_ context.Context, msg Message) error {
		got = msg.Text
		return nil
	})
	if err := d.Deliver(context.Background(), Message{Text: "hi"}); err != nil || got != "hi" {
		t.Errorf("DelivererFunc = %q, %v", got, err)
	}
}
