package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/seatwatch/internal/model"
)

const seatColumns = `floor_id, seat_id, has_power, is_empty, is_reported, is_malicious, is_system_reported,
	lock_until_ts, last_update_ts, last_state_is_empty, daily_empty_seconds, total_empty_seconds,
	change_count, occupancy_start_ts`

// SeatRepo provides methods to work with seat records in the database.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSeat(sc scanner) (model.Seat, error) {
	var s model.Seat
	err := sc.Scan(
		&s.FloorID, &s.SeatID, &s.HasPower, &s.IsEmpty,
		&s.Flags.Reported, &s.Flags.Malicious, &s.Flags.SystemReported,
		&s.LockUntilTS, &s.LastUpdateTS, &s.LastStateIsEmpty,
		&s.DailyEmptySeconds, &s.TotalEmptySeconds, &s.ChangeCount, &s.OccupancyStartTS,
	)
	return s, err
}

func listSeats(ctx context.Context, q querier, query string, args ...any) ([]model.Seat, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// EnsureSeats creates a default record for every configured seat that has
// none yet. Existing records are left untouched.
func (r *SeatRepo) EnsureSeats(ctx context.Context, cfg model.FloorConfig) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing := map[string]bool{}
	rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM seats WHERE floor_id = ?`, cfg.FloorID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	const ins = `INSERT INTO seats (floor_id, seat_id, has_power, is_empty, last_state_is_empty)
	             VALUES (?, ?, ?, ?, ?)`
	for _, spec := range cfg.Seats {
		if existing[spec.SeatID] {
			continue
		}
		s := model.NewSeat(cfg.FloorID, spec)
		if _, err := tx.ExecContext(ctx, ins, s.FloorID, s.SeatID, s.HasPower, s.IsEmpty, s.LastStateIsEmpty); err != nil {
			return fmt.Errorf("insert seat %s/%s: %w", cfg.FloorID, spec.SeatID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListByFloor returns the floor's seats ordered by seat id.
func (r *SeatRepo) ListByFloor(ctx context.Context, floorID string) ([]model.Seat, error) {
	return r.ListByFloorTx(ctx, nil, floorID)
}

// ListByFloorTx is ListByFloor inside a caller-owned transaction. A nil tx
// reads outside any transaction.
func (r *SeatRepo) ListByFloorTx(ctx context.Context, tx *sql.Tx, floorID string) ([]model.Seat, error) {
	return listSeats(ctx, r.q(tx), `SELECT `+seatColumns+` FROM seats WHERE floor_id = ? ORDER BY seat_id`, floorID)
}

// ListAll returns every seat ordered by floor then seat.
func (r *SeatRepo) ListAll(ctx context.Context) ([]model.Seat, error) {
	return r.ListAllTx(ctx, nil)
}

// ListAllTx is ListAll inside a caller-owned transaction.
func (r *SeatRepo) ListAllTx(ctx context.Context, tx *sql.Tx) ([]model.Seat, error) {
	return listSeats(ctx, r.q(tx), `SELECT `+seatColumns+` FROM seats ORDER BY floor_id, seat_id`)
}

// ListMalicious returns the seats currently flagged malicious.
func (r *SeatRepo) ListMalicious(ctx context.Context) ([]model.Seat, error) {
	return listSeats(ctx, r.db, `SELECT `+seatColumns+` FROM seats WHERE is_malicious = TRUE ORDER BY floor_id, seat_id`)
}

// ListAnomalies returns seats with any anomaly flag set, optionally
// restricted to one floor when floorID is not empty.
func (r *SeatRepo) ListAnomalies(ctx context.Context, floorID string) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats
	      WHERE (is_reported = TRUE OR is_malicious = TRUE OR is_system_reported = TRUE)`
	var args []any
	if floorID != "" {
		q += ` AND floor_id = ?`
		args = append(args, floorID)
	}
	q += ` ORDER BY floor_id, seat_id`
	return listSeats(ctx, r.db, q, args...)
}

// Get retrieves a single seat.
func (r *SeatRepo) Get(ctx context.Context, floorID, seatID string) (*model.Seat, error) {
	s, err := scanSeat(r.db.QueryRowContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE floor_id = ? AND seat_id = ?`, floorID, seatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeatNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ObservedUpdate carries the result of applying one observation to a seat.
// Counters are increments rather than absolute values so a rollover reset
// running between the read and this write is never undone.
type ObservedUpdate struct {
	FloorID          string
	SeatID           string
	PrevUpdateTS     int64 // last_update_ts the deltas were computed from
	Now              int64
	Commit           bool  // write IsEmpty; still skipped while locked at Now
	IsEmpty          bool
	Promote          bool  // set is_malicious; never clears it, skipped while locked
	LastStateIsEmpty bool
	EmptyDelta       int64
	ChangeDelta      int64
	OccupancyStartTS int64
}

// UpdateObservedTx persists an observation inside the refresh transaction.
// The report flags and the lock are owned by other writers and are not
// touched here. The write only applies while last_update_ts still equals
// PrevUpdateTS; otherwise ErrStaleSeat is returned so the same interval is
// never credited twice.
func (r *SeatRepo) UpdateObservedTx(ctx context.Context, tx *sql.Tx, u ObservedUpdate) error {
	const q = `UPDATE seats SET
		is_empty = CASE WHEN ? AND lock_until_ts <= ? THEN ? ELSE is_empty END,
		is_malicious = CASE WHEN ? AND lock_until_ts <= ? THEN TRUE ELSE is_malicious END,
		last_update_ts = ?,
		last_state_is_empty = ?,
		daily_empty_seconds = daily_empty_seconds + ?,
		total_empty_seconds = total_empty_seconds + ?,
		change_count = change_count + ?,
		occupancy_start_ts = ?
		WHERE floor_id = ? AND seat_id = ? AND last_update_ts = ?`
	res, err := tx.ExecContext(ctx, q,
		u.Commit, u.Now, u.IsEmpty,
		u.Promote, u.Now,
		u.Now, u.LastStateIsEmpty,
		u.EmptyDelta, u.EmptyDelta, u.ChangeDelta,
		u.OccupancyStartTS,
		u.FloorID, u.SeatID, u.PrevUpdateTS)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM seats WHERE floor_id = ? AND seat_id = ?`, u.FloorID, u.SeatID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSeatNotFound
	}
	if err != nil {
		return err
	}
	return ErrStaleSeat
}

// MarkSystemReported flags a malicious seat as system reported. It reports
// false when the seat was already flagged or is no longer malicious.
func (r *SeatRepo) MarkSystemReported(ctx context.Context, floorID, seatID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE seats SET is_system_reported = TRUE
		 WHERE floor_id = ? AND seat_id = ? AND is_malicious = TRUE AND is_system_reported = FALSE`,
		floorID, seatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetReported records a user report against a seat.
func (r *SeatRepo) SetReported(ctx context.Context, floorID, seatID string) error {
	return r.exec(ctx, `UPDATE seats SET is_reported = TRUE WHERE floor_id = ? AND seat_id = ?`, floorID, seatID)
}

// Confirm resolves an anomaly by evicting the occupant: all flags are
// cleared, the seat is shown empty and the unattended streak is closed.
func (r *SeatRepo) Confirm(ctx context.Context, floorID, seatID string) error {
	return r.exec(ctx, `UPDATE seats SET
		is_reported = FALSE, is_malicious = FALSE, is_system_reported = FALSE,
		is_empty = TRUE, occupancy_start_ts = 0
		WHERE floor_id = ? AND seat_id = ?`, floorID, seatID)
}

// Dismiss clears all flags as a false alarm and leaves is_empty alone.
func (r *SeatRepo) Dismiss(ctx context.Context, floorID, seatID string) error {
	return r.exec(ctx, `UPDATE seats SET
		is_reported = FALSE, is_malicious = FALSE, is_system_reported = FALSE,
		occupancy_start_ts = 0
		WHERE floor_id = ? AND seat_id = ?`, floorID, seatID)
}

// Lock freezes the displayed state until the given epoch second.
func (r *SeatRepo) Lock(ctx context.Context, floorID, seatID string, until int64) error {
	return r.exec(ctx, `UPDATE seats SET lock_until_ts = ? WHERE floor_id = ? AND seat_id = ?`, until, floorID, seatID)
}

// ResetDailyTx takes the exported daily seconds off each listed seat.
// Seconds credited after the export was read stay for the next period.
func (r *SeatRepo) ResetDailyTx(ctx context.Context, tx *sql.Tx, exported []model.Seat) error {
	return deduct(ctx, tx, "daily_empty_seconds", exported, func(s model.Seat) int64 { return s.DailyEmptySeconds })
}

// ResetTotalTx is ResetDailyTx for the monthly counter.
func (r *SeatRepo) ResetTotalTx(ctx context.Context, tx *sql.Tx, exported []model.Seat) error {
	return deduct(ctx, tx, "total_empty_seconds", exported, func(s model.Seat) int64 { return s.TotalEmptySeconds })
}

func deduct(ctx context.Context, tx *sql.Tx, column string, seats []model.Seat, pick func(model.Seat) int64) error {
	stmt, err := tx.PrepareContext(ctx,
		`UPDATE seats SET `+column+` = `+column+` - ? WHERE floor_id = ? AND seat_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range seats {
		v := pick(s)
		if v == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, v, s.FloorID, s.SeatID); err != nil {
			return fmt.Errorf("%s %s/%s: %w", column, s.FloorID, s.SeatID, err)
		}
	}
	return nil
}

func (r *SeatRepo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *SeatRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow maps an update that matched nothing to ErrSeatNotFound.
// The MySQL DSN sets clientFoundRows so matched rows are counted even when
// no value changed.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSeatNotFound
	}
	return nil
}
