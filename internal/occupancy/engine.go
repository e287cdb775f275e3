package occupancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seatwatch/internal/model"
	q "github.com/iliyamo/seatwatch/internal/queue"
	"github.com/iliyamo/seatwatch/internal/repository"
)

// Rollovers catches up on missed daily and monthly rollovers.
type Rollovers interface {
	PerformRolloversIfNeeded(ctx context.Context, now time.Time) error
}

// AlarmNotifier is told about every seat the alarm sweep escalates.
type AlarmNotifier interface {
	PublishSystemReported(ctx context.Context, ev q.SeatSystemReportedEvent) error
}

// Engine runs floor refreshes and the alarm sweep against the seat store.
type Engine struct {
	db        *sql.DB
	seats     *repository.SeatRepo
	agg       *Aggregator
	rollovers Rollovers
	notify    AlarmNotifier
	now       func() time.Time
	log       zerolog.Logger

	locks sync.Map // floor id -> *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithRollovers runs a best-effort rollover check before every refresh.
func WithRollovers(r Rollovers) Option { return func(e *Engine) { e.rollovers = r } }

// WithNotifier publishes escalations found by SweepAlarms.
func WithNotifier(n AlarmNotifier) Option { return func(e *Engine) { e.notify = n } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(db *sql.DB, seats *repository.SeatRepo, agg *Aggregator, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{db: db, seats: seats, agg: agg, now: time.Now, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) floorLock(floorID string) *sync.Mutex {
	l, _ := e.locks.LoadOrStore(floorID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// RefreshFloor samples one floor and commits the resulting seat states in
// a single transaction. Any store failure rolls back the whole floor.
// When the stream is unavailable only statistics are written, with every
// seat observed empty. The returned seats are in configuration order.
// Refreshes of the same floor run one at a time.
func (e *Engine) RefreshFloor(ctx context.Context, cfg model.FloorConfig) ([]model.Seat, error) {
	l := e.floorLock(cfg.FloorID)
	l.Lock()
	defer l.Unlock()

	log := e.log.With().Str("floor_id", cfg.FloorID).Logger()
	now := e.now()

	if e.rollovers != nil {
		if err := e.rollovers.PerformRolloversIfNeeded(ctx, now); err != nil {
			log.Warn().Err(err).Msg("rollover check failed")
		}
	}
	if err := e.seats.EnsureSeats(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("ensure seats failed")
		return nil, fmt.Errorf("ensure seats: %w", err)
	}

	w := e.agg.Observe(ctx, cfg)
	statsOnly := w.StreamErr != nil
	if statsOnly {
		log.Info().Err(w.StreamErr).Msg("no frames, recording statistics only")
	}

	seats, err := e.commit(ctx, cfg, w, now.Unix(), statsOnly)
	if err != nil {
		log.Error().Err(err).Msg("refresh rolled back")
		return nil, err
	}
	log.Debug().Int("frames", w.Frames).Int("seats", len(seats)).Msg("floor refreshed")
	return seats, nil
}

func (e *Engine) commit(ctx context.Context, cfg model.FloorConfig, w Window, now int64, statsOnly bool) ([]model.Seat, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stored, err := e.seats.ListByFloorTx(ctx, tx, cfg.FloorID)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}
	byID := make(map[string]*model.Seat, len(stored))
	for i := range stored {
		byID[stored[i].SeatID] = &stored[i]
	}

	out := make([]model.Seat, 0, len(cfg.Seats))
	for _, spec := range cfg.Seats {
		s, ok := byID[spec.SeatID]
		if !ok {
			return nil, fmt.Errorf("seat %s: %w", spec.SeatID, repository.ErrSeatNotFound)
		}
		obs := w.Seats[spec.SeatID]
		prev := s.LastUpdateTS

		var res Outcome
		if statsOnly {
			res = Accrue(s, true, now)
		} else {
			res = Apply(s, obs, now)
		}
		var changes int64
		if res.Changed {
			changes = 1
		}
		err := e.seats.UpdateObservedTx(ctx, tx, repository.ObservedUpdate{
			FloorID:          cfg.FloorID,
			SeatID:           spec.SeatID,
			PrevUpdateTS:     prev,
			Now:              now,
			Commit:           res.Committed,
			IsEmpty:          s.IsEmpty,
			Promote:          res.Promoted,
			LastStateIsEmpty: s.LastStateIsEmpty,
			EmptyDelta:       res.EmptySeconds,
			ChangeDelta:      changes,
			OccupancyStartTS: s.OccupancyStartTS,
		})
		if err != nil {
			return nil, fmt.Errorf("update seat %s: %w", spec.SeatID, err)
		}
		out = append(out, *s)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return out, nil
}

// SweepAlarms escalates every malicious seat whose unattended streak has
// been open longer than SystemReportAfter. Re-running it is a no-op for
// seats already escalated. It returns how many seats were newly flagged.
func (e *Engine) SweepAlarms(ctx context.Context) (int, error) {
	now := e.now()
	seats, err := e.seats.ListMalicious(ctx)
	if err != nil {
		return 0, fmt.Errorf("list malicious: %w", err)
	}

	var (
		n    int
		errs []error
	)
	for i := range seats {
		s := &seats[i]
		if !Escalate(s, now.Unix()) {
			continue
		}
		ok, err := e.seats.MarkSystemReported(ctx, s.FloorID, s.SeatID)
		if err != nil {
			errs = append(errs, fmt.Errorf("seat %s/%s: %w", s.FloorID, s.SeatID, err))
			continue
		}
		if !ok {
			continue
		}
		n++
		unattended := now.Unix() - s.OccupancyStartTS
		e.log.Info().Str("floor_id", s.FloorID).Str("seat_id", s.SeatID).
			Int64("unattended_seconds", unattended).Msg("seat system reported")
		e.publish(ctx, q.SeatSystemReportedEvent{
			EventID:          uuid.NewString(),
			FloorID:          s.FloorID,
			SeatID:           s.SeatID,
			OccupancyStartTS: s.OccupancyStartTS,
			UnattendedFor:    unattended,
			ReportedAt:       now.UTC().Format(time.RFC3339),
		})
	}
	return n, errors.Join(errs...)
}

func (e *Engine) publish(ctx context.Context, ev q.SeatSystemReportedEvent) {
	if e.notify == nil {
		return
	}
	if err := e.notify.PublishSystemReported(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("seat_id", ev.SeatID).Msg("alarm event not published")
	}
}
