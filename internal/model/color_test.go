package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeatColor(t *testing.T) {
	tests := []struct {
		name string
		seat Seat
		user string
		adm  string
	}{
		{"empty without power", Seat{IsEmpty: true}, SeatGreen, SeatGreen},
		{"empty with power", Seat{IsEmpty: true, HasPower: true}, SeatBlue, SeatBlue},
		{"occupied", Seat{IsEmpty: false}, SeatGray, SeatGray},
		{"reported wins", Seat{IsEmpty: true, Flags: Flags{Reported: true}}, AdminYellow, AdminYellow},
		{"malicious occupied shows free to admin", Seat{IsEmpty: false, HasPower: true, Flags: Flags{Malicious: true}}, SeatGray, SeatBlue},
		{"malicious empty shows occupied to admin", Seat{IsEmpty: true, Flags: Flags{Malicious: true}}, SeatGreen, SeatGray},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.user, SeatColor(tt.seat))
			assert.Equal(t, tt.adm, AdminColor(tt.seat))
		})
	}
}

func TestFloorColor(t *testing.T) {
	assert.Equal(t, FloorRed, FloorColor(0, 0))
	assert.Equal(t, FloorRed, FloorColor(0, 10))
	assert.Equal(t, AdminYellow, FloorColor(5, 10))
	assert.Equal(t, SeatGreen, FloorColor(6, 10))
}

func TestSummarize(t *testing.T) {
	seats := []Seat{
		{FloorID: "F2", SeatID: "a", IsEmpty: true},
		{FloorID: "F1", SeatID: "b", IsEmpty: false},
		{FloorID: "F2", SeatID: "c", IsEmpty: false},
		{FloorID: "F2", SeatID: "d", IsEmpty: true},
	}
	got := Summarize(seats)
	assert.Equal(t, []FloorSummary{
		{FloorID: "F2", EmptyCount: 2, TotalCount: 3, FloorColor: SeatGreen},
		{FloorID: "F1", EmptyCount: 0, TotalCount: 1, FloorColor: FloorRed},
	}, got)
}

func TestFlags(t *testing.T) {
	var f Flags
	assert.False(t, f.Anomalous())
	f.SystemReported = true
	assert.True(t, f.Anomalous())
}
