package model

// Seat is the persistent occupancy record of one monitored desk. Seats
// are identified by their floor and seat id and are created the first
// time a floor refresh sees the seat in its configuration.
//
// Fields:
//
//	FloorID, SeatID     – identity; seats are never deleted by the engine.
//	HasPower            – whether the desk has a power socket (static).
//	IsEmpty             – displayed occupancy; frozen while LockUntilTS is in the future.
//	Flags               – anomaly flag set (reported / malicious / system reported).
//	LockUntilTS         – epoch seconds until which the displayed state is frozen.
//	LastUpdateTS        – epoch seconds of the last observation applied.
//	LastStateIsEmpty    – the observed (not displayed) state at LastUpdateTS.
//	DailyEmptySeconds   – empty time accrued since the last daily rollover.
//	TotalEmptySeconds   – empty time accrued since the last monthly rollover.
//	ChangeCount         – number of observed empty/occupied transitions.
//	OccupancyStartTS    – start of the open unattended-object streak, 0 when none.
type Seat struct {
	FloorID           string `json:"floor_id"`            // seats.floor_id
	SeatID            string `json:"seat_id"`             // seats.seat_id
	HasPower          bool   `json:"has_power"`           // seats.has_power
	IsEmpty           bool   `json:"is_empty"`            // seats.is_empty
	Flags             Flags  `json:"flags"`               // seats.is_reported, is_malicious, is_system_reported
	LockUntilTS       int64  `json:"lock_until_ts"`       // seats.lock_until_ts
	LastUpdateTS      int64  `json:"last_update_ts"`      // seats.last_update_ts
	LastStateIsEmpty  bool   `json:"last_state_is_empty"` // seats.last_state_is_empty
	DailyEmptySeconds int64  `json:"daily_empty_seconds"` // seats.daily_empty_seconds
	TotalEmptySeconds int64  `json:"total_empty_seconds"` // seats.total_empty_seconds
	ChangeCount       int64  `json:"change_count"`        // seats.change_count
	OccupancyStartTS  int64  `json:"occupancy_start_ts"`  // seats.occupancy_start_ts
}

// NewSeat returns the record created on first sight of a configured seat.
func NewSeat(floorID string, spec SeatSpec) Seat {
	return Seat{
		FloorID:          floorID,
		SeatID:           spec.SeatID,
		HasPower:         spec.HasPower,
		IsEmpty:          true,
		LastStateIsEmpty: true,
	}
}

// Locked reports whether the displayed state is frozen at now.
func (s Seat) Locked(now int64) bool {
	return now < s.LockUntilTS
}

// Flags is the set of anomaly markers layered on a seat. The three
// booleans are independent:
//
//	Reported       – a user filed a report; cleared by confirm/dismiss.
//	Malicious      – unattended object for two hours; sticky until confirm/dismiss.
//	SystemReported – malicious for more than 30s, escalated by the alarm sweep.
//
// Any combination may occur (for example Reported without Malicious when a
// user reports a seat the detector considers fine). SystemReported is only
// ever set on a seat that is also Malicious.
type Flags struct {
	Reported       bool `json:"is_reported"`
	Malicious      bool `json:"is_malicious"`
	SystemReported bool `json:"is_system_reported"`
}

// Anomalous is true when any flag is set; this is what the admin
// anomaly list shows.
func (f Flags) Anomalous() bool {
	return f.Reported || f.Malicious || f.SystemReported
}
