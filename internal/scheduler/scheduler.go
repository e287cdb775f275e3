// Package scheduler runs the background jobs: one refresh job per floor,
// the alarm sweep and the midnight rollover. Every job runs at most once
// at a time; a tick that finds its job still running is dropped rather
// than queued.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seatwatch/internal/model"
)

// Job ids.
const (
	AlarmJobID    = "alarm_check"
	RolloverJobID = "daily_rollover"
	refreshPrefix = "refresh_"

	// AlarmInterval is fixed; only the refresh interval is configurable.
	AlarmInterval = 5 * time.Second
	// DailySpec fires at local 00:00:00.
	DailySpec = "0 0 0 * * *"
)

// RefreshJobID names the refresh job of a floor.
func RefreshJobID(floorID string) string { return refreshPrefix + floorID }

// Floors lists and loads floor configurations.
type Floors interface {
	ListFloorIDs() ([]string, error)
	Load(floorID string) (model.FloorConfig, error)
}

// Engine is the work the jobs perform.
type Engine interface {
	RefreshFloor(ctx context.Context, cfg model.FloorConfig) ([]model.Seat, error)
	SweepAlarms(ctx context.Context) (int, error)
}

// Rollovers performs the midnight rollover check.
type Rollovers interface {
	PerformRolloversIfNeeded(ctx context.Context, now time.Time) error
}

// Options tune the scheduler.
type Options struct {
	RefreshInterval time.Duration
	Workers         int // jobs executing at the same time
	Location        *time.Location
}

// Scheduler owns a cron runner that is rebuilt on every Start so the floor
// list is read afresh.
type Scheduler struct {
	floors    Floors
	engine    Engine
	rollovers Rollovers
	opts      Options
	log       zerolog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	jobs   map[string]cron.EntryID
}

func New(floors Floors, engine Engine, rollovers Rollovers, opts Options, log zerolog.Logger) *Scheduler {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 5 * time.Second
	}
	if opts.Workers < 1 {
		opts.Workers = 10
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Scheduler{floors: floors, engine: engine, rollovers: rollovers, opts: opts, log: log}
}

// ErrRunning is returned by Start when the scheduler is already running.
var ErrRunning = errors.New("scheduler already running")

// Start registers every job and starts the runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrRunning
	}

	floors, err := s.floors.ListFloorIDs()
	if err != nil {
		return err
	}

	clog := cronLogger{log: s.log}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(s.opts.Location),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog), limit(s.opts.Workers)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	jobs := map[string]cron.EntryID{}

	for _, id := range floors {
		floorID := id
		jobs[RefreshJobID(floorID)] = c.Schedule(cron.Every(s.opts.RefreshInterval), s.job(RefreshJobID(floorID), func() {
			s.refresh(ctx, floorID)
		}))
	}
	jobs[AlarmJobID] = c.Schedule(cron.Every(AlarmInterval), s.job(AlarmJobID, func() {
		s.sweep(ctx)
	}))
	if s.rollovers != nil {
		entry, err := c.AddJob(DailySpec, s.job(RolloverJobID, func() {
			s.rollover(ctx)
		}))
		if err != nil {
			cancel()
			return err
		}
		jobs[RolloverJobID] = entry
	}

	c.Start()
	s.cron, s.cancel, s.jobs = c, cancel, jobs
	s.log.Info().Int("floors", len(floors)).Dur("interval", s.opts.RefreshInterval).Msg("scheduler started")
	return nil
}

// Stop halts the runner without waiting for jobs in flight; their context
// is cancelled. Stopping a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.cron, s.cancel, s.jobs = nil, nil, nil
	s.log.Info().Msg("scheduler stopped")
}

// Running reports whether the runner is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// JobIDs lists the registered jobs, sorted.
func (s *Scheduler) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NextRun returns when a job fires next.
func (s *Scheduler) NextRun(jobID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}, false
	}
	id, ok := s.jobs[jobID]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) job(id string, fn func()) cron.Job {
	return cron.FuncJob(func() {
		start := time.Now()
		fn()
		s.log.Debug().Str("job", id).Dur("took", time.Since(start)).Msg("job finished")
	})
}

func (s *Scheduler) refresh(ctx context.Context, floorID string) {
	cfg, err := s.floors.Load(floorID)
	if err != nil {
		s.log.Error().Err(err).Str("floor_id", floorID).Msg("load floor config failed")
		return
	}
	if _, err := s.engine.RefreshFloor(ctx, cfg); err != nil {
		s.log.Error().Err(err).Str("floor_id", floorID).Msg("refresh failed")
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if _, err := s.engine.SweepAlarms(ctx); err != nil {
		s.log.Error().Err(err).Msg("alarm sweep failed")
	}
}

func (s *Scheduler) rollover(ctx context.Context) {
	if err := s.rollovers.PerformRolloversIfNeeded(ctx, time.Now()); err != nil {
		s.log.Error().Err(err).Msg("daily rollover failed")
	}
}

// limit bounds how many wrapped jobs execute at the same time.
func limit(n int) cron.JobWrapper {
	sem := make(chan struct{}, n)
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			j.Run()
		})
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
