package model

import "github.com/iliyamo/seatwatch/internal/geometry"

// FloorConfig is the validated description of one monitored floor. It is
// treated as immutable for the duration of a refresh cycle.
//
// Fields:
//
//	FloorID    – identifier used for seats, jobs and the video cursor.
//	StreamPath – absolute file path or stream URL of the floor camera.
//	FrameSize  – optional [width, height] the ROIs were drawn against.
//	Seats      – ordered seat specs; order is preserved in refresh output.
type FloorConfig struct {
	FloorID    string     `json:"floor_id"`
	StreamPath string     `json:"stream_path"`
	FrameSize  [2]int     `json:"frame_size"`
	Seats      []SeatSpec `json:"seats"`
}

// SeatSpec is the static definition of a seat and its region of interest.
type SeatSpec struct {
	SeatID   string           `json:"seat_id"`
	HasPower bool             `json:"has_power"`
	DeskROI  geometry.Polygon `json:"desk_roi"`
}

// SeatIDs returns the configured seat ids in order.
func (f FloorConfig) SeatIDs() []string {
	ids := make([]string, 0, len(f.Seats))
	for _, s := range f.Seats {
		ids = append(ids, s.SeatID)
	}
	return ids
}

// FloorSummary aggregates a floor's seats for the floor list view.
type FloorSummary struct {
	FloorID    string `json:"floor_id"`
	EmptyCount int    `json:"empty_count"`
	TotalCount int    `json:"total_count"`
	FloorColor string `json:"floor_color"`
}
