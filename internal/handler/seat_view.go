package handler

import "github.com/iliyamo/seatwatch/internal/model"

type seatView struct {
	FloorID      string `json:"floor_id"`
	SeatID       string `json:"seat_id"`
	HasPower     bool   `json:"has_power"`
	IsEmpty      bool   `json:"is_empty"`
	IsReported   bool   `json:"is_reported"`
	Color        string `json:"color"`
	LockUntilTS  int64  `json:"lock_until_ts"`
	LastUpdateTS int64  `json:"last_update_ts"`
}

// adminSeatView adds the flags students do not see.
type adminSeatView struct {
	seatView
	IsMalicious      bool   `json:"is_malicious"`
	IsSystemReported bool   `json:"is_system_reported"`
	AdminColor       string `json:"admin_color"`
	OccupancyStartTS int64  `json:"occupancy_start_ts"`
}

type seatStatsView struct {
	FloorID           string `json:"floor_id"`
	SeatID            string `json:"seat_id"`
	DailyEmptySeconds int64  `json:"daily_empty_seconds"`
	TotalEmptySeconds int64  `json:"total_empty_seconds"`
	ChangeCount       int64  `json:"change_count"`
	LastUpdateTS      int64  `json:"last_update_ts"`
}

func toSeatView(s model.Seat) seatView {
	return seatView{
		FloorID:      s.FloorID,
		SeatID:       s.SeatID,
		HasPower:     s.HasPower,
		IsEmpty:      s.IsEmpty,
		IsReported:   s.Flags.Reported,
		Color:        model.SeatColor(s),
		LockUntilTS:  s.LockUntilTS,
		LastUpdateTS: s.LastUpdateTS,
	}
}

func toAdminSeatView(s model.Seat) adminSeatView {
	return adminSeatView{
		seatView:         toSeatView(s),
		IsMalicious:      s.Flags.Malicious,
		IsSystemReported: s.Flags.SystemReported,
		AdminColor:       model.AdminColor(s),
		OccupancyStartTS: s.OccupancyStartTS,
	}
}

func toSeatStats(s model.Seat) seatStatsView {
	return seatStatsView{
		FloorID:           s.FloorID,
		SeatID:            s.SeatID,
		DailyEmptySeconds: s.DailyEmptySeconds,
		TotalEmptySeconds: s.TotalEmptySeconds,
		ChangeCount:       s.ChangeCount,
		LastUpdateTS:      s.LastUpdateTS,
	}
}

func seatViews(seats []model.Seat) []seatView {
	out := make([]seatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, toSeatView(s))
	}
	return out
}

func adminSeatViews(seats []model.Seat) []adminSeatView {
	out := make([]adminSeatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, toAdminSeatView(s))
	}
	return out
}
