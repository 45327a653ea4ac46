// internal/app/system/txn/txn.go
//
// Package txn runs multi-document writes atomically.
//
// On a replica set (or sharded cluster) Run uses a MongoDB transaction through
// session.WithTransaction, which re-runs the whole closure on transient errors.
// On a standalone server transactions are unavailable; Run then serializes the
// closure against every other Run call that names one of the same aggregate
// keys, so two operations on one group (or one pair of profiles) never
// interleave inside this process.
package txn

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

// unsupported remembers clients whose deployment rejected transactions,
// so later calls go straight to the locked path.
var unsupported sync.Map // *mongo.Client -> struct{}

// locks is the process-wide single-writer table used by the fallback path.
var locks = NewKeyLocker()

// Run executes fn atomically. keys name the aggregates fn touches
// (e.g. "studyGroups:<id>", "users:<uid>"); they are only used when the
// server cannot run transactions.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error, keys ...string) error {
	client := db.Client()
	if _, ok := unsupported.Load(client); ok {
		return runLocked(ctx, keys, fn)
	}

	sess, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			markUnsupported(client, log, err)
			return runLocked(ctx, keys, fn)
		}
		return err
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	if err != nil && IsNotSupported(err) {
		// Nothing was committed: the server refused the transaction before any write applied.
		markUnsupported(client, log, err)
		return runLocked(ctx, keys, fn)
	}
	return err
}

func markUnsupported(client *mongo.Client, log *zap.Logger, err error) {
	if _, loaded := unsupported.LoadOrStore(client, struct{}{}); !loaded && log != nil {
		log.Warn("mongo transactions unavailable; falling back to per-aggregate locking",
			zap.Error(err))
	}
}

func runLocked(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	unlock, err := locks.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions at all (a standalone server). Ordinary
// transaction failures on a replica set are not matched.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		// IllegalOperation is also used for unrelated failures; only the
		// standalone wording counts.
		return ce.Code == 20 && standaloneMessage(ce.Message)
	}
	return standaloneMessage(err.Error())
}

func standaloneMessage(msg string) bool {
	s := strings.ToLower(msg)
	switch {
	case strings.Contains(s, "transaction numbers are only allowed on a replica set member or mongos"):
		return true
	case strings.Contains(s, "transaction") && strings.Contains(s, "replica set"):
		return true
	}
	return false
}

// KeyLocker is a set of named mutexes. Entries are reference counted and
// dropped once no caller holds or waits on them.
type KeyLocker struct {
	mu sync.Mutex
	m  map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{} // capacity 1; a token in the channel means "held"
	refs int
}

// NewKeyLocker returns an empty KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{m: make(map[string]*keyEntry)}
}

// Lock acquires every key, in sorted order so overlapping callers cannot
// deadlock. It returns a release func, or ctx.Err() if ctx ends first
// (in which case nothing is held).
func (l *KeyLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	uniq := dedupeSorted(keys)
	held := make([]string, 0, len(uniq))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlockOne(held[i])
		}
	}

	for _, k := range uniq {
		e := l.acquireEntry(k)
		select {
		case e.ch <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.releaseEntry(k)
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (l *KeyLocker) acquireEntry(k string) *keyEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.m[k]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		l.m[k] = e
	}
	e.refs++
	return e
}

func (l *KeyLocker) releaseEntry(k string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.m[k]; ok {
		e.refs--
		if e.refs == 0 {
			delete(l.m, k)
		}
	}
}

func (l *KeyLocker) unlockOne(k string) {
	l.mu.Lock()
	e := l.m[k]
	l.mu.Unlock()
	if e != nil {
		<-e.ch
	}
	l.releaseEntry(k)
}

// size is the number of live entries; used by tests.
func (l *KeyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func dedupeSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
