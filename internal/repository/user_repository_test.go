package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seatwatch/internal/database"
	"github.com/iliyamo/seatwatch/internal/model"
	"github.com/iliyamo/seatwatch/internal/utils"
)

func TestUserCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(database.NewTestDB(t))

	id, err := repo.Create(ctx, "  Alice ", "secret", model.RoleStudent, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotZero(t, id)

	u, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, model.RoleStudent, u.Role)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "secret"))
	assert.False(t, u.CreatedAt.IsZero())

	_, err = repo.Create(ctx, "ALICE", "other", model.RoleStudent, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.GetByID(ctx, id+100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpsertAdmin(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(database.NewTestDB(t))

	id, err := repo.UpsertAdmin(ctx, "root", "first", bcrypt.MinCost)
	require.NoError(t, err)

	again, err := repo.UpsertAdmin(ctx, "root", "second", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	u, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "second"))
}

func TestRolloverMarkers(t *testing.T) {
	ctx := context.Background()
	repo := NewRolloverRepo(database.NewTestDB(t))

	ts, err := repo.Marker(ctx, "daily")
	require.NoError(t, err)
	assert.Zero(t, ts)

	require.NoError(t, repo.SetMarker(ctx, "daily", 100))
	require.NoError(t, repo.SetMarker(ctx, "daily", 200))
	require.NoError(t, repo.SetMarker(ctx, "monthly", 50))

	ts, err = repo.Marker(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, int64(200), ts)
	ts, err = repo.Marker(ctx, "monthly")
	require.NoError(t, err)
	assert.Equal(t, int64(50), ts)
}
