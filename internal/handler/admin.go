package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seatwatch/internal/middleware"
	"github.com/iliyamo/seatwatch/internal/repository"
)

// DefaultLockMinutes applies when the lock request names no duration.
const DefaultLockMinutes = 5

// MaxLockMinutes caps a single lock at one year.
const MaxLockMinutes = 365 * 24 * 60

// AdminHandler serves anomaly review and seat locks.
type AdminHandler struct {
	Seats *repository.SeatRepo
	Now   func() time.Time
	Log   zerolog.Logger
}

func NewAdminHandler(seats *repository.SeatRepo, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{Seats: seats, Now: time.Now, Log: log}
}

// Anomalies lists seats with any flag set, optionally for one floor.
func (h *AdminHandler) Anomalies(c echo.Context) error {
	seats, err := h.Seats.ListAnomalies(c.Request().Context(), c.QueryParam("floor"))
	if err != nil {
		h.Log.Error().Err(err).Msg("list anomalies failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, adminSeatViews(seats))
}

// ListSeats is the admin view of a floor, with malicious seats inverted.
func (h *AdminHandler) ListSeats(c echo.Context) error {
	seats, err := h.Seats.ListByFloor(c.Request().Context(), c.Param("floor"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, adminSeatViews(seats))
}

// Confirm evicts: clears every flag and shows the seat empty.
func (h *AdminHandler) Confirm(c echo.Context) error {
	return h.act(c, "confirm", func() error {
		return h.Seats.Confirm(c.Request().Context(), c.Param("floor"), c.Param("seat"))
	})
}

// Dismiss clears every flag as a false alarm.
func (h *AdminHandler) Dismiss(c echo.Context) error {
	return h.act(c, "dismiss", func() error {
		return h.Seats.Dismiss(c.Request().Context(), c.Param("floor"), c.Param("seat"))
	})
}

// Lock freezes the displayed state for ?minutes=N (default 5, negative
// values clamp to 0 which unlocks, larger values clamp to MaxLockMinutes).
func (h *AdminHandler) Lock(c echo.Context) error {
	minutes := DefaultLockMinutes
	if raw := c.QueryParam("minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "minutes must be an integer"})
		}
		minutes = min(max(n, 0), MaxLockMinutes)
	}
	until := h.Now().Unix() + int64(minutes)*60
	return h.act(c, "lock", func() error {
		return h.Seats.Lock(c.Request().Context(), c.Param("floor"), c.Param("seat"), until)
	})
}

func (h *AdminHandler) act(c echo.Context, action string, fn func() error) error {
	floorID, seatID := c.Param("floor"), c.Param("seat")
	if err := fn(); err != nil {
		return seatError(c, err)
	}
	h.Log.Info().Str("action", action).Str("floor_id", floorID).Str("seat_id", seatID).
		Uint64("admin_id", middleware.UserID(c)).Msg("admin action")
	s, err := h.Seats.Get(c.Request().Context(), floorID, seatID)
	if err != nil {
		return seatError(c, err)
	}
	return c.JSON(http.StatusOK, toAdminSeatView(*s))
}
