// Package session tracks logged-in users and runs the detection scheduler
// only while at least one of them is active.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Runner is started on the first login and stopped on the last logout.
type Runner interface {
	Start() error
	Stop()
}

// Gate counts distinct session keys. The same key entering twice counts
// once, so one user logged in from two tabs is a single viewer.
type Gate struct {
	runner Runner
	log    zerolog.Logger

	mu     sync.Mutex
	keys   map[string]struct{}
	active atomic.Int64
}

func NewGate(runner Runner, log zerolog.Logger) *Gate {
	return &Gate{runner: runner, log: log, keys: map[string]struct{}{}}
}

// Enter records key as active. The runner is started when the set goes
// from empty to non-empty; if that start fails the key is not recorded.
func (g *Gate) Enter(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.keys[key]; ok {
		return nil
	}
	if len(g.keys) == 0 {
		if err := g.runner.Start(); err != nil {
			return err
		}
		g.log.Info().Str("key", key).Msg("first session, scheduler started")
	}
	g.keys[key] = struct{}{}
	g.active.Store(int64(len(g.keys)))
	return nil
}

// Leave removes key. Unknown keys are ignored. The runner is stopped
// when the last key leaves.
func (g *Gate) Leave(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.keys[key]; !ok {
		return
	}
	delete(g.keys, key)
	g.active.Store(int64(len(g.keys)))
	if len(g.keys) == 0 {
		g.runner.Stop()
		g.log.Info().Str("key", key).Msg("last session gone, scheduler stopped")
	}
}

// Active returns the number of distinct active keys.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// IsActive reports whether key is recorded.
func (g *Gate) IsActive(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.keys[key]
	return ok
}
