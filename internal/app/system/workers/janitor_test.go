package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeCleaner struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

type fakeSweeper struct {
	last atomic.Int64
}

func (f *fakeSweeper) Sweep(now time.Time) {
	f.last.Store(now.UnixNano())
}

func TestJanitor_RunOnce(t *testing.T) {
	j := NewJanitor(zap.NewNop(), time.Hour)
	ok := &fakeCleaner{}
	failing := &fakeCleaner{err: errors.New("db down")}
	sw := &fakeSweeper{}
	j.AddCleaner("ok", ok)
	j.AddCleaner("failing", failing)
	j.AddSweeper(sw)

	now := time.Now()
	j.RunOnce(now)

	if ok.calls.Load() != 1 || failing.calls.Load() != 1 {
		t.Errorf("expected each cleaner once, got %d and %d", ok.calls.Load(), failing.calls.Load())
	}
	if sw.last.Load() != now.UnixNano() {
		t.Error("sweeper not called with the pass time")
	}
}

func TestJanitor_StartStop(t *testing.T) {
	j := NewJanitor(zap.NewNop(), 5*time.Millisecond)
	c := &fakeCleaner{}
	j.AddCleaner("c", c)

	j.Start()
	deadline := time.Now().Add(2 * time.Second)
	for c.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	j.Stop()
	j.Stop()

	if c.calls.Load() == 0 {
		t.Error("expected at least one cleanup pass")
	}
}
