// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names. Both are declared durable by publishers and consumers.
const (
	UsageExportedQueue  = "seat.usage.exported"
	SystemReportedQueue = "seat.system_reported"
)

// Rollover kinds carried in UsageExportedEvent.Kind.
const (
	KindDaily   = "daily"
	KindMonthly = "monthly"
)

// SeatUsage is one seat's accrued empty time for an exported period.
type SeatUsage struct {
	FloorID      string `json:"floor_id"`
	SeatID       string `json:"seat_id"`
	EmptySeconds int64  `json:"empty_seconds"`
	ChangeCount  int64  `json:"change_count"`
}

// UsageExportedEvent is published by a rollover just before the
// counters it carries are reset. Period is "2006-01-02" for daily
// exports and "2006-01" for monthly ones, in the server's time zone.
type UsageExportedEvent struct {
	ExportID   string      `json:"export_id"`
	Kind       string      `json:"kind"`
	Period     string      `json:"period"`
	BoundaryTS int64       `json:"boundary_ts"`
	Seats      []SeatUsage `json:"seats"`
	ExportedAt string      `json:"exported_at"`
}

// SeatSystemReportedEvent is published when the alarm sweep escalates a
// malicious seat into the anomaly list.
type SeatSystemReportedEvent struct {
	EventID          string `json:"event_id"`
	FloorID          string `json:"floor_id"`
	SeatID           string `json:"seat_id"`
	OccupancyStartTS int64  `json:"occupancy_start_ts"`
	UnattendedFor    int64  `json:"unattended_seconds"`
	ReportedAt       string `json:"reported_at"`
}
