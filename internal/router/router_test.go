package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seatwatch/internal/config"
	"github.com/iliyamo/seatwatch/internal/database"
	"github.com/iliyamo/seatwatch/internal/floorconfig"
	"github.com/iliyamo/seatwatch/internal/geometry"
	"github.com/iliyamo/seatwatch/internal/handler"
	"github.com/iliyamo/seatwatch/internal/model"
	"github.com/iliyamo/seatwatch/internal/repository"
	"github.com/iliyamo/seatwatch/internal/session"
)

type runner struct {
	mu      sync.Mutex
	running bool
}

func (r *runner) Start() error { r.set(true); return nil }
func (r *runner) Stop()        { r.set(false) }

func (r *runner) set(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = v
}

func (r *runner) on() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

type floors map[string]model.FloorConfig

func (f floors) Load(id string) (model.FloorConfig, error) {
	cfg, ok := f[id]
	if !ok {
		return model.FloorConfig{}, floorconfig.ErrFloorNotFound
	}
	return cfg, nil
}

type refresher struct {
	seats *repository.SeatRepo
	calls []string
}

func (r *refresher) RefreshFloor(ctx context.Context, cfg model.FloorConfig) ([]model.Seat, error) {
	r.calls = append(r.calls, cfg.FloorID)
	return r.seats.ListByFloor(ctx, cfg.FloorID)
}

type harness struct {
	e       *echo.Echo
	users   *repository.UserRepo
	seats   *repository.SeatRepo
	runner  *runner
	refresh *refresher
	now     time.Time
}

var square = geometry.Polygon{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := database.NewTestDB(t)
	h := &harness{
		e:      echo.New(),
		users:  repository.NewUserRepo(db),
		seats:  repository.NewSeatRepo(db),
		runner: &runner{},
		now:    time.Unix(1_760_000_000, 0),
	}
	h.refresh = &refresher{seats: h.seats}

	f1 := model.FloorConfig{FloorID: "F1", StreamPath: "f1.mp4", Seats: []model.SeatSpec{
		{SeatID: "A1", HasPower: true, DeskROI: square},
		{SeatID: "A2", DeskROI: square},
	}}
	require.NoError(t, h.seats.EnsureSeats(context.Background(), f1))

	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 5, BcryptCost: bcrypt.MinCost}
	_, err := h.users.UpsertAdmin(context.Background(), "root", "rootpw", cfg.BcryptCost)
	require.NoError(t, err)

	gate := session.NewGate(h.runner, zerolog.Nop())
	admin := handler.NewAdminHandler(h.seats, zerolog.Nop())
	admin.Now = func() time.Time { return h.now }
	Register(h.e, Handlers{
		Auth:      handler.NewAuthHandler(cfg, h.users, gate, zerolog.Nop()),
		Seats:     handler.NewSeatHandler(h.seats, floors{"F1": f1}, h.refresh, zerolog.Nop()),
		Admin:     admin,
		JWTSecret: cfg.JWTSecret,
	})
	return h
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) login(t *testing.T, user, pass string) string {
	t.Helper()
	rec := h.do(http.MethodPost, "/v1/auth/login", "", `{"username":"`+user+`","password":"`+pass+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[struct {
		Access struct{ Token string } `json:"access"`
	}](t, rec).Access.Token
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthFlowGatesScheduler(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/v1/auth/register", "", `{"username":" Dana ","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, h.runner.on(), "registration does not start a session")

	rec = h.do(http.MethodPost, "/v1/auth/register", "", `{"username":"dana","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = h.do(http.MethodPost, "/v1/auth/register", "", `{"username":"","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/v1/auth/login", "", `{"username":"dana","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(http.MethodPost, "/v1/auth/login", "", `{"username":"ghost","password":"pw"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	student := h.login(t, "dana", "pw")
	admin := h.login(t, "root", "rootpw")
	assert.True(t, h.runner.on())

	me := decode[map[string]any](t, h.do(http.MethodGet, "/v1/me", student, ""))
	assert.Equal(t, "student", me["role"])
	assert.Equal(t, "dana", me["username"])
	assert.EqualValues(t, 2, me["active_sessions"])

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/v1/auth/logout", "", "").Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/v1/auth/logout", student, "").Code)
	assert.True(t, h.runner.on())
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodPost, "/v1/auth/logout", admin, "").Code)
	assert.False(t, h.runner.on())
}

func TestSeatViews(t *testing.T) {
	h := newHarness(t)

	sum := decode[[]model.FloorSummary](t, h.do(http.MethodGet, "/v1/floors", "", ""))
	require.Len(t, sum, 1)
	assert.Equal(t, model.FloorSummary{FloorID: "F1", EmptyCount: 2, TotalCount: 2, FloorColor: model.SeatGreen}, sum[0])

	seats := decode[[]map[string]any](t, h.do(http.MethodGet, "/v1/floors/F1/seats", "", ""))
	require.Len(t, seats, 2)
	assert.Equal(t, model.SeatBlue, seats[0]["color"])
	assert.Equal(t, model.SeatGreen, seats[1]["color"])
	assert.NotContains(t, seats[0], "is_malicious")

	assert.Empty(t, decode[[]map[string]any](t, h.do(http.MethodGet, "/v1/floors/F9/seats", "", "")))

	rec := h.do(http.MethodGet, "/v1/floors/F1/seats/A2/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"floor_id":"F1","seat_id":"A2","daily_empty_seconds":0,"total_empty_seconds":0,"change_count":0,"last_update_ts":0}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/floors/F1/seats/Z9", "", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/floors/F1/seats/Z9/stats", "", "").Code)
}

func TestReportAndRefresh(t *testing.T) {
	h := newHarness(t)
	tok := h.login(t, "root", "rootpw")

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/v1/floors/F1/seats/A1/report", "", "").Code)
	rec := h.do(http.MethodPost, "/v1/floors/F1/seats/A1/report", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.AdminYellow, decode[map[string]any](t, rec)["color"])
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/v1/floors/F1/seats/Z9/report", tok, "").Code)

	rec = h.do(http.MethodPost, "/v1/floors/F1/refresh", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)
	assert.Equal(t, []string{"F1"}, h.refresh.calls)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/v1/floors/F9/refresh", tok, "").Code)
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.users.Create(ctx, "eve", "pw", model.RoleStudent, bcrypt.MinCost)
	require.NoError(t, err)
	student := h.login(t, "eve", "pw")
	admin := h.login(t, "root", "rootpw")

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/v1/admin/anomalies", student, "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/admin/anomalies", "", "").Code)

	require.NoError(t, h.seats.SetReported(ctx, "F1", "A2"))
	list := decode[[]map[string]any](t, h.do(http.MethodGet, "/v1/admin/anomalies?floor=F1", admin, ""))
	require.Len(t, list, 1)
	assert.Equal(t, "A2", list[0]["seat_id"])
	assert.Empty(t, decode[[]map[string]any](t, h.do(http.MethodGet, "/v1/admin/anomalies?floor=F2", admin, "")))

	view := decode[[]map[string]any](t, h.do(http.MethodGet, "/v1/admin/floors/F1/seats", admin, ""))
	require.Len(t, view, 2)
	assert.Contains(t, view[0], "admin_color")

	rec := h.do(http.MethodPost, "/v1/admin/floors/F1/seats/A2/dismiss", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["is_reported"])

	rec = h.do(http.MethodPost, "/v1/admin/floors/F1/seats/A1/confirm", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["is_empty"])

	now := h.now.Unix()
	rec = h.do(http.MethodPost, "/v1/admin/floors/F1/seats/A1/lock", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, now+300, decode[map[string]any](t, rec)["lock_until_ts"])

	rec = h.do(http.MethodPost, "/v1/admin/floors/F1/seats/A1/lock?minutes=-3", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, now, decode[map[string]any](t, rec)["lock_until_ts"])

	rec = h.do(http.MethodPost, "/v1/admin/floors/F1/seats/A1/lock?minutes=12", admin, "")
	assert.EqualValues(t, now+720, decode[map[string]any](t, rec)["lock_until_ts"])

	rec = h.do(http.MethodPost, "/v1/admin/floors/F1/seats/A1/lock?minutes=9223372036854775807", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, now+int64(handler.MaxLockMinutes)*60, decode[map[string]any](t, rec)["lock_until_ts"],
		"huge durations are capped instead of wrapping negative")

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/v1/admin/floors/F1/seats/A1/lock?minutes=soon", admin, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/v1/admin/floors/F1/seats/Z9/confirm", admin, "").Code)
}
