// internal/app/system/workers/janitor.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiredCleaner deletes expired records and reports how many went.
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Sweeper drops in-memory state idle as of now.
type Sweeper interface {
	Sweep(now time.Time)
}

// Janitor periodically removes expired OAuth states and idle rate-limit buckets.
type Janitor struct {
	cleaners map[string]ExpiredCleaner
	sweepers []Sweeper
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a janitor that runs every interval.
func NewJanitor(logger *zap.Logger, interval time.Duration) *Janitor {
	return &Janitor{
		cleaners: map[string]ExpiredCleaner{},
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// AddCleaner registers a store cleanup under name (used in logs).
func (j *Janitor) AddCleaner(name string, c ExpiredCleaner) {
	j.cleaners[name] = c
}

// AddSweeper registers an in-memory sweeper.
func (j *Janitor) AddSweeper(s Sweeper) {
	j.sweepers = append(j.sweepers, s)
}

// Start begins the background loop. Register cleaners and sweepers first.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.run()
	j.log.Info("janitor started", zap.Duration("interval", j.interval))
}

// Stop signals the loop to exit and waits for it. Safe to call twice.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
	j.log.Info("janitor stopped")
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case now := <-ticker.C:
			j.RunOnce(now)
		}
	}
}

// RunOnce performs one cleanup pass.
func (j *Janitor) RunOnce(now time.Time) {
	for _, s := range j.sweepers {
		s.Sweep(now)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for name, c := range j.cleaners {
		n, err := c.CleanupExpired(ctx)
		if err != nil {
			j.log.Error("cleanup failed", zap.String("target", name), zap.Error(err))
			continue
		}
		if n > 0 {
			j.log.Info("removed expired records", zap.String("target", name), zap.Int64("count", n))
		}
	}
}
