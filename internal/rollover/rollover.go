// Package rollover exports and resets the accrued empty-time counters at
// local day and month boundaries, catching up on any boundaries missed
// while the process was down.
package rollover

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

// Marker names in the rollover_state table. Each kind advances on its own
// so a failing daily export never holds back the monthly one.
const (
	MarkerDaily   = "daily"
	MarkerMonthly = "monthly"
)

// Exporter receives a usage snapshot before the counters are reset. A
// returned error aborts that rollover; nothing is reset and it is retried
// on the next check.
type Exporter interface {
	ExportUsage(ctx context.Context, ev q.UsageExportedEvent) error
}

// Accountant performs daily and monthly rollovers.
type Accountant struct {
	db       *sql.DB
	seats    *repository.SeatRepo
	markers  *repository.RolloverRepo
	exporter Exporter
	loc      *time.Location
	log      zerolog.Logger

	mu sync.Mutex // one rollover check at a time
}

// NewAccountant returns an accountant computing boundaries in loc.
func NewAccountant(db *sql.DB, seats *repository.SeatRepo, markers *repository.RolloverRepo, exporter Exporter, loc *time.Location, log zerolog.Logger) *Accountant {
	if loc == nil {
		loc = time.Local
	}
	return &Accountant{db: db, seats: seats, markers: markers, exporter: exporter, loc: loc, log: log}
}

// PerformRolloversIfNeeded applies, in chronological order, every daily
// and monthly rollover whose boundary lies after the recorded marker and
// not after now. On the very first call the markers are initialised to now
// and nothing is exported. Errors of each kind are logged and joined; a
// failed kind stops at the failing boundary so no day is skipped.
func (a *Accountant) PerformRolloversIfNeeded(ctx context.Context, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now = now.In(a.loc)
	daily, dailyOK, err := a.marker(ctx, MarkerDaily, now)
	if err != nil {
		return err
	}
	monthly, monthlyOK, err := a.marker(ctx, MarkerMonthly, now)
	if err != nil {
		return err
	}

	from := now
	if dailyOK {
		from = time.Unix(daily, 0)
	}
	if monthlyOK && time.Unix(monthly, 0).Before(from) {
		from = time.Unix(monthly, 0)
	}

	var errs []error
	for b := nextMidnight(from, a.loc); !b.After(now) && (dailyOK || monthlyOK); b = nextMidnight(b, a.loc) {
		if dailyOK && b.Unix() > daily {
			if err := a.Daily(ctx, b); err != nil {
				a.log.Error().Err(err).Time("boundary", b).Msg("daily rollover failed")
				errs = append(errs, err)
				dailyOK = false
			}
		}
		if monthlyOK && b.Day() == 1 && b.Unix() > monthly {
			if err := a.Monthly(ctx, b); err != nil {
				a.log.Error().Err(err).Time("boundary", b).Msg("monthly rollover failed")
				errs = append(errs, err)
				monthlyOK = false
			}
		}
	}
	return errors.Join(errs...)
}

// marker loads a marker, initialising it to now when missing. ok is false
// when the marker was just initialised and there is nothing to catch up.
func (a *Accountant) marker(ctx context.Context, name string, now time.Time) (int64, bool, error) {
	ts, err := a.markers.Marker(ctx, name)
	if err != nil {
		return 0, false, fmt.Errorf("load %s marker: %w", name, err)
	}
	if ts > 0 {
		return ts, true, nil
	}
	if err := a.markers.SetMarker(ctx, name, now.Unix()); err != nil {
		return 0, false, fmt.Errorf("init %s marker: %w", name, err)
	}
	a.log.Info().Str("marker", name).Time("at", now).Msg("rollover marker initialised")
	return now.Unix(), false, nil
}

// Daily exports the day that ended at boundary and resets the daily
// counters.
func (a *Accountant) Daily(ctx context.Context, boundary time.Time) error {
	period := boundary.AddDate(0, 0, -1).Format("2006-01-02")
	return a.rollover(ctx, MarkerDaily, q.KindDaily, period, boundary,
		func(s model.Seat) int64 { return s.DailyEmptySeconds }, a.seats.ResetDailyTx)
}

// Monthly exports the month that ended at boundary and resets the total
// counters.
func (a *Accountant) Monthly(ctx context.Context, boundary time.Time) error {
	period := boundary.AddDate(0, -1, 0).Format("2006-01")
	return a.rollover(ctx, MarkerMonthly, q.KindMonthly, period, boundary,
		func(s model.Seat) int64 { return s.TotalEmptySeconds }, a.seats.ResetTotalTx)
}

func (a *Accountant) rollover(ctx context.Context, marker, kind, period string, boundary time.Time,
	pick func(model.Seat) int64, reset func(context.Context, *sql.Tx, []model.Seat) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s %s: begin: %w", kind, period, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seats, err := a.seats.ListAllTx(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s %s: load seats: %w", kind, period, err)
	}
	ev := q.UsageExportedEvent{
		ExportID:   uuid.NewString(),
		Kind:       kind,
		Period:     period,
		BoundaryTS: boundary.Unix(),
		Seats:      make([]q.SeatUsage, 0, len(seats)),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, s := range seats {
		ev.Seats = append(ev.Seats, q.SeatUsage{FloorID: s.FloorID, SeatID: s.SeatID, EmptySeconds: pick(s), ChangeCount: s.ChangeCount})
	}
	if err := a.exporter.ExportUsage(ctx, ev); err != nil {
		return fmt.Errorf("%s %s: export: %w", kind, period, err)
	}
	if err := reset(ctx, tx, seats); err != nil {
		return fmt.Errorf("%s %s: reset: %w", kind, period, err)
	}
	if err := a.markers.SetMarkerTx(ctx, tx, marker, boundary.Unix()); err != nil {
		return fmt.Errorf("%s %s: marker: %w", kind, period, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s %s: commit: %w", kind, period, err)
	}
	committed = true
	a.log.Info().Str("kind", kind).Str("period", period).Int("seats", len(seats)).Str("export_id", ev.ExportID).Msg("rollover done")
	return nil
}

// nextMidnight returns the first local midnight strictly after t.
func nextMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// LogExporter appends usage exports to a file under Dir. It is used when
// no broker is configured.
type LogExporter struct {
	Dir string
	Log zerolog.Logger
}

func (e LogExporter) ExportUsage(_ context.Context, ev q.UsageExportedEvent) error {
	if err := q.AppendUsageLog(e.Dir, ev); err != nil {
		return err
	}
	e.Log.Info().Str("kind", ev.Kind).Str("period", ev.Period).Int("seats", len(ev.Seats)).Msg("usage exported to log")
	return nil
}
