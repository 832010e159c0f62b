package web

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSubscriber struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func (f *fakeSubscriber) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// stalledSubscriber blocks every Send until released, standing in for a peer
// that stopped reading.
type stalledSubscriber struct {
	release chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newStalledSubscriber() *stalledSubscriber {
	return &stalledSubscriber{release: make(chan struct{}), closed: make(chan struct{})}
}

func (s *stalledSubscriber) Send([]byte) error {
	<-s.release
	return nil
}

func (s *stalledSubscriber) Close() {
	s.once.Do(func() { close(s.closed) })
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestHub_BroadcastIsPerTeam(t *testing.T) {
	h := newHub()
	eng := &fakeSubscriber{}
	ops := &fakeSubscriber{}
	h.register("eng", eng)
	h.register("ops", ops)

	h.broadcast("eng", []byte("hello"))
	waitFor(t, "eng delivery", func() bool { return eng.sentCount() == 1 })
	if ops.sentCount() != 0 {
		t.Fatalf("ops received a foreign broadcast")
	}
	h.broadcast("ghost", []byte("nobody listening"))
}

func TestHub_DropsFailedClients(t *testing.T) {
	h := newHub()
	good := &fakeSubscriber{}
	bad := &fakeSubscriber{fail: true}
	h.register("eng", good)
	h.register("eng", bad)

	h.broadcast("eng", []byte("one"))
	waitFor(t, "failed client closed", bad.isClosed)
	h.broadcast("eng", []byte("two"))
	waitFor(t, "healthy client deliveries", func() bool { return good.sentCount() == 2 })
}

func TestHub_Unregister(t *testing.T) {
	h := newHub()
	c := &fakeSubscriber{}
	h.register("eng", c)
	h.unregister("eng", c)
	h.broadcast("eng", []byte("gone"))
	time.Sleep(50 * time.Millisecond)
	if c.sentCount() != 0 {
		t.Fatalf("unregistered client received %d messages", c.sentCount())
	}
}

func TestHub_StalledClientDoesNotBlockBroadcast(t *testing.T) {
	h := newHub()
	stalled := newStalledSubscriber()
	healthy := &fakeSubscriber{}
	h.register("eng", stalled)
	h.register("eng", healthy)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// One payload sits in the blocked Send, outboxSize fill the buffer,
		// and the next overflows it.
		for i := 0; i < outboxSize+2; i++ {
			h.broadcast("eng", []byte("payload"))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked behind a stalled client")
	}

	select {
	case <-stalled.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("stalled client was not dropped")
	}
	waitFor(t, "healthy client deliveries", func() bool { return healthy.sentCount() == outboxSize+2 })
	close(stalled.release)
}
