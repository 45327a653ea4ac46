package realtime

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func receive(t *testing.T, s *Subscription) bool {
	t.Helper()
	select {
	case _, ok := <-s.C:
		return ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
		return false
	}
}

func pending(s *Subscription) bool {
	select {
	case _, ok := <-s.C:
		return ok
	default:
		return false
	}
}

func TestHub_PublishReachesOnlyTargetUser(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := h.Subscribe("a")
	b := h.Subscribe("b")
	defer a.Cancel()
	defer b.Cancel()

	h.Publish("a")

	if !receive(t, a) {
		t.Error("expected a to be signalled")
	}
	if pending(b) {
		t.Error("expected b not to be signalled")
	}
}

func TestHub_SignalsCoalesce(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := h.Subscribe("u")
	defer s.Cancel()

	h.Publish("u")
	h.Publish("u")
	h.Publish("u", "u")

	if !receive(t, s) {
		t.Fatal("expected a signal")
	}
	if pending(s) {
		t.Error("expected publishes to coalesce into one signal")
	}
}

func TestHub_MultipleSubscribersPerUser(t *testing.T) {
	h := NewHub(zap.NewNop())
	s1 := h.Subscribe("u")
	s2 := h.Subscribe("u")

	if got := h.Subscribers("u"); got != 2 {
		t.Fatalf("Subscribers = %d, want 2", got)
	}

	h.Publish("u")
	receive(t, s1)
	receive(t, s2)

	s1.Cancel()
	if got := h.Subscribers("u"); got != 1 {
		t.Errorf("Subscribers after cancel = %d, want 1", got)
	}
	s2.Cancel()
	if got := h.Subscribers("u"); got != 0 {
		t.Errorf("Subscribers after both cancel = %d, want 0", got)
	}
	if _, ok := h.subs["u"]; ok {
		t.Error("expected empty user entry to be removed")
	}
}

func TestSubscription_CancelClosesAndIsIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := h.Subscribe("u")

	s.Cancel()
	s.Cancel()

	if _, ok := <-s.C; ok {
		t.Error("expected channel to be closed after Cancel")
	}

	// Publishing after cancel must not panic.
	h.Publish("u")
}

func TestHub_Close(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := h.Subscribe("u")

	h.Close()

	if _, ok := <-s.C; ok {
		t.Error("expected channel closed by hub Close")
	}
	s.Cancel()

	late := h.Subscribe("u")
	if _, ok := <-late.C; ok {
		t.Error("expected subscription on closed hub to be closed")
	}
}

func TestHub_ConcurrentUse(t *testing.T) {
	h := NewHub(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := h.Subscribe("u")
			h.Publish("u")
			s.Cancel()
		}()
		go func() {
			defer wg.Done()
			h.Publish("u")
		}()
	}
	wg.Wait()
	if got := h.Subscribers("u"); got != 0 {
		t.Errorf("expected no subscribers left, got %d", got)
	}
}
