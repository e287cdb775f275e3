package occupancy

import "github.com/iliyamo/seatwatch/internal/model"

const (
	// PresenceThreshold is the fraction of sampled frames a category must
	// be seen in before it counts as present.
	PresenceThreshold = 0.30
	// MaliciousAfter is how long an unattended object must hold a seat
	// before it is flagged, in seconds.
	MaliciousAfter int64 = 7200
	// SystemReportAfter is how long a malicious streak must be open before
	// the alarm sweep escalates it, in seconds.
	SystemReportAfter int64 = 30
)

// Observation is the aggregated result of one sampling window for a seat.
type Observation struct {
	Empty         bool
	PersonPresent bool
	ObjectPresent bool
	PersonRatio   float64
	ObjectRatio   float64
	FramesSeen    int
}

// Outcome describes what Apply changed, in the shape the store persists.
type Outcome struct {
	EmptySeconds int64 // added to both daily and total counters
	Changed      bool  // observed state flipped
	Committed    bool  // displayed state was written (seat unlocked)
	Promoted     bool  // streak reached MaliciousAfter this cycle
}

// Apply runs one observation through the seat state machine. Statistics
// and the unattended-object timer always follow the observation; the
// displayed state and the malicious flag only move when the seat is not
// locked at now.
func Apply(s *model.Seat, obs Observation, now int64) Outcome {
	out := Accrue(s, obs.Empty, now)

	if obs.ObjectPresent && !obs.PersonPresent {
		if s.OccupancyStartTS == 0 {
			s.OccupancyStartTS = now
		}
	} else {
		s.OccupancyStartTS = 0
	}

	if s.Locked(now) {
		return out
	}
	out.Committed = true
	s.IsEmpty = obs.Empty
	if s.OccupancyStartTS > 0 && now-s.OccupancyStartTS >= MaliciousAfter {
		out.Promoted = true
		s.Flags.Malicious = true
	}
	return out
}

// Accrue updates only the statistics of a seat: empty time since the last
// update is credited when the seat was last observed empty, and a flip of
// the observed state is counted.
func Accrue(s *model.Seat, observedEmpty bool, now int64) Outcome {
	var out Outcome
	if s.LastUpdateTS > 0 {
		if delta := now - s.LastUpdateTS; s.LastStateIsEmpty && delta > 0 {
			out.EmptySeconds = delta
			s.DailyEmptySeconds += delta
			s.TotalEmptySeconds += delta
		}
		if s.LastStateIsEmpty != observedEmpty {
			out.Changed = true
			s.ChangeCount++
		}
	}
	s.LastStateIsEmpty = observedEmpty
	s.LastUpdateTS = now
	return out
}

// Escalate applies the alarm rule to a seat: a malicious seat whose
// streak has been open for more than SystemReportAfter seconds becomes
// system reported. It returns true only when the flag was newly set.
func Escalate(s *model.Seat, now int64) bool {
	if !s.Flags.Malicious || s.Flags.SystemReported {
		return false
	}
	if s.OccupancyStartTS <= 0 || now-s.OccupancyStartTS <= SystemReportAfter {
		return false
	}
	s.Flags.SystemReported = true
	return true
}
