package repository

import (
	"context"
	"database/sql"
	"errors"
)

// RolloverRepo stores the last boundary each rollover kind has processed.
type RolloverRepo struct{ db *sql.DB }

func NewRolloverRepo(db *sql.DB) *RolloverRepo { return &RolloverRepo{db: db} }

// Marker returns the last processed boundary for name, or 0 when the
// rollover has never run.
func (r *RolloverRepo) Marker(ctx context.Context, name string) (int64, error) {
	var ts int64
	err := r.db.QueryRowContext(ctx, `SELECT last_ts FROM rollover_state WHERE name = ?`, name).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return ts, err
}

// SetMarkerTx records ts as the last processed boundary for name.
func (r *RolloverRepo) SetMarkerTx(ctx context.Context, tx *sql.Tx, name string, ts int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE rollover_state SET last_ts = ? WHERE name = ?`, ts, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO rollover_state (name, last_ts) VALUES (?, ?)`, name, ts)
	return err
}

// SetMarker is SetMarkerTx in its own transaction.
func (r *RolloverRepo) SetMarker(ctx context.Context, name string, ts int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.SetMarkerTx(ctx, tx, name, ts); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
