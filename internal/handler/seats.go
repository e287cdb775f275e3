package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seatwatch/internal/floorconfig"
	"github.com/iliyamo/seatwatch/internal/model"
	"github.com/iliyamo/seatwatch/internal/repository"
)

// Refresher runs one detection cycle for a floor.
type Refresher interface {
	RefreshFloor(ctx context.Context, cfg model.FloorConfig) ([]model.Seat, error)
}

// FloorLoader loads a floor configuration by id.
type FloorLoader interface {
	Load(floorID string) (model.FloorConfig, error)
}

// SeatHandler serves the student-facing seat views.
type SeatHandler struct {
	Seats  *repository.SeatRepo
	Floors FloorLoader
	Engine Refresher
	Log    zerolog.Logger
}

func NewSeatHandler(seats *repository.SeatRepo, floors FloorLoader, engine Refresher, log zerolog.Logger) *SeatHandler {
	return &SeatHandler{Seats: seats, Floors: floors, Engine: engine, Log: log}
}

// ListFloors returns per-floor availability.
func (h *SeatHandler) ListFloors(c echo.Context) error {
	seats, err := h.Seats.ListAll(c.Request().Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("list seats failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := model.Summarize(seats)
	if out == nil {
		out = []model.FloorSummary{}
	}
	return c.JSON(http.StatusOK, out)
}

// ListSeats returns a floor's seats.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	seats, err := h.Seats.ListByFloor(c.Request().Context(), c.Param("floor"))
	if err != nil {
		h.Log.Error().Err(err).Str("floor_id", c.Param("floor")).Msg("list seats failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, seatViews(seats))
}

// GetSeat returns one seat.
func (h *SeatHandler) GetSeat(c echo.Context) error {
	s, err := h.Seats.Get(c.Request().Context(), c.Param("floor"), c.Param("seat"))
	if err != nil {
		return seatError(c, err)
	}
	return c.JSON(http.StatusOK, toSeatView(*s))
}

// SeatStats returns the accrued usage counters of a seat.
func (h *SeatHandler) SeatStats(c echo.Context) error {
	s, err := h.Seats.Get(c.Request().Context(), c.Param("floor"), c.Param("seat"))
	if err != nil {
		return seatError(c, err)
	}
	return c.JSON(http.StatusOK, toSeatStats(*s))
}

// Refresh runs a detection cycle now, through the same path as the
// scheduled job, and returns the floor's seats.
func (h *SeatHandler) Refresh(c echo.Context) error {
	floorID := c.Param("floor")
	cfg, err := h.Floors.Load(floorID)
	if err != nil {
		switch {
		case errors.Is(err, floorconfig.ErrFloorNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "floor not found"})
		case errors.Is(err, floorconfig.ErrInvalidConfig):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		}
		h.Log.Error().Err(err).Str("floor_id", floorID).Msg("load floor config failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load floor failed"})
	}
	seats, err := h.Engine.RefreshFloor(c.Request().Context(), cfg)
	if errors.Is(err, repository.ErrStaleSeat) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "floor refreshed concurrently, retry"})
	}
	if err != nil {
		h.Log.Error().Err(err).Str("floor_id", floorID).Msg("manual refresh failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	return c.JSON(http.StatusOK, seatViews(seats))
}

// Report flags a seat for admin review.
func (h *SeatHandler) Report(c echo.Context) error {
	ctx := c.Request().Context()
	floorID, seatID := c.Param("floor"), c.Param("seat")
	if err := h.Seats.SetReported(ctx, floorID, seatID); err != nil {
		return seatError(c, err)
	}
	h.Log.Info().Str("floor_id", floorID).Str("seat_id", seatID).Msg("seat reported")
	s, err := h.Seats.Get(ctx, floorID, seatID)
	if err != nil {
		return seatError(c, err)
	}
	return c.JSON(http.StatusOK, toSeatView(*s))
}

func seatError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrSeatNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "seat not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
}
