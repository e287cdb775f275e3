package model

// Display colours shared with the front end.
const (
	SeatGreen   = "#60D937"
	SeatBlue    = "#00A1FF"
	SeatGray    = "#929292"
	AdminYellow = "#FEAE03"
	SeatRed     = "#FF5252"
	FloorRed    = "#FF0000"
)

func freeColor(hasPower bool) string {
	if hasPower {
		return SeatBlue
	}
	return SeatGreen
}

// SeatColor is the colour shown to regular users.
func SeatColor(s Seat) string {
	switch {
	case s.Flags.Reported:
		return AdminYellow
	case !s.IsEmpty:
		return SeatGray
	default:
		return freeColor(s.HasPower)
	}
}

// AdminColor is the colour shown in the admin view. A malicious seat is
// drawn inverted: a seat that looks empty is drawn occupied and the
// reverse, so squatted desks stand out.
func AdminColor(s Seat) string {
	if !s.Flags.Malicious {
		return SeatColor(s)
	}
	if s.IsEmpty {
		return SeatGray
	}
	return freeColor(s.HasPower)
}

// FloorColor summarises availability: red when nothing is free, green
// when more than half is free, yellow otherwise.
func FloorColor(empty, total int) string {
	if total == 0 || empty == 0 {
		return FloorRed
	}
	if float64(empty)/float64(total) > 0.5 {
		return SeatGreen
	}
	return AdminYellow
}

// Summarize builds per-floor summaries from a flat seat list, keyed and
// ordered by the order floors first appear.
func Summarize(seats []Seat) []FloorSummary {
	idx := map[string]int{}
	var out []FloorSummary
	for _, s := range seats {
		i, ok := idx[s.FloorID]
		if !ok {
			i = len(out)
			idx[s.FloorID] = i
			out = append(out, FloorSummary{FloorID: s.FloorID})
		}
		out[i].TotalCount++
		if s.IsEmpty {
			out[i].EmptyCount++
		}
	}
	for i := range out {
		out[i].FloorColor = FloorColor(out[i].EmptyCount, out[i].TotalCount)
	}
	return out
}
