package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/seatwatch/internal/model"
	"github.com/iliyamo/seatwatch/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password, inserts the user and returns its ID.
// ErrConflict is returned when the username is taken.
func (r *UserRepo) Create(ctx context.Context, username, password, role string, cost int) (uint64, error) {
	username = normalizeUsername(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role, created_at) VALUES (?,?,?,?)",
		username, hash, role, time.Now().Unix())
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getOne(ctx, "SELECT id,username,password_hash,role,created_at FROM users WHERE username=? LIMIT 1",
		normalizeUsername(username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT id,username,password_hash,role,created_at FROM users WHERE id=? LIMIT 1", id)
}

// UpsertAdmin creates the named user as admin, or resets the password and
// role of an existing one.
func (r *UserRepo) UpsertAdmin(ctx context.Context, username, password string, cost int) (uint64, error) {
	u, err := r.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return r.Create(ctx, username, password, model.RoleAdmin, cost)
	}
	if err != nil {
		return 0, err
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, role=? WHERE id=?", hash, model.RoleAdmin, u.ID); err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	var (
		u       model.User
		created int64
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, err
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// isDuplicate recognises unique-key violations from MySQL (1062) and
// SQLite (constraint failed).
func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}
