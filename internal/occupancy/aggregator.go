package occupancy

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/seatwatch/internal/detect"
	"github.com/iliyamo/seatwatch/internal/geometry"
	"github.com/iliyamo/seatwatch/internal/model"
	"github.com/iliyamo/seatwatch/internal/video"
)

// Sampler hands out the next window of frames for a floor.
// *video.Registry is the production implementation.
type Sampler interface {
	Sample(floorID, streamPath string, interval time.Duration) ([]video.Frame, error)
}

// Window is the aggregated sampling result for one floor refresh.
type Window struct {
	Frames int
	Seats  map[string]Observation
	// StreamErr is set when no frames could be read at all. Seats still
	// carry (empty) observations so statistics keep accruing.
	StreamErr error
}

// Aggregator turns a floor's sampled frames into per-seat observations.
type Aggregator struct {
	frames   Sampler
	detector detect.Detector
	labels   detect.Labels
	interval time.Duration
	log      zerolog.Logger
}

// NewAggregator wires a frame sampler to a detector. interval is the time
// between refreshes of the same floor; it decides how far the cursor moves.
func NewAggregator(frames Sampler, detector detect.Detector, labels detect.Labels, interval time.Duration, log zerolog.Logger) *Aggregator {
	return &Aggregator{frames: frames, detector: detector, labels: labels, interval: interval, log: log}
}

// Observe samples the floor and classifies every frame. Frames are read
// under the floor's cursor lock; detection runs here, after the lock has
// been released.
func (a *Aggregator) Observe(ctx context.Context, cfg model.FloorConfig) Window {
	frames, err := a.frames.Sample(cfg.FloorID, cfg.StreamPath, a.interval)
	defer func() {
		for _, f := range frames {
			_ = f.Close()
		}
	}()

	t := newTally(cfg.Seats)
	for i, f := range frames {
		if ctx.Err() != nil {
			break
		}
		dets, derr := a.detector.Detect(ctx, f)
		if derr != nil {
			a.log.Warn().Err(derr).Str("floor_id", cfg.FloorID).Int("frame", i).Msg("detection failed, frame counted as empty")
			dets = nil
		}
		persons, objects := a.labels.Partition(dets)
		t.add(persons, objects)
	}

	w := Window{Frames: t.frames, Seats: t.observations()}
	switch {
	case err != nil:
		w.StreamErr = err
	case len(frames) == 0:
		w.StreamErr = video.ErrStreamUnavailable
	}
	if w.StreamErr != nil && !errors.Is(w.StreamErr, video.ErrStreamUnavailable) {
		a.log.Warn().Err(w.StreamErr).Str("floor_id", cfg.FloorID).Msg("sample failed")
	}
	return w
}

type hits struct{ person, object, frames int }

// tally counts, per seat, the frames in which each category was seen
// inside the seat's region. Several points of one category in the same
// frame count once.
type tally struct {
	seats  []model.SeatSpec
	counts map[string]*hits
	frames int
}

func newTally(seats []model.SeatSpec) *tally {
	t := &tally{seats: seats, counts: make(map[string]*hits, len(seats))}
	for _, s := range seats {
		t.counts[s.SeatID] = &hits{}
	}
	return t
}

func (t *tally) add(persons, objects []geometry.Point) {
	t.frames++
	for _, s := range t.seats {
		h := t.counts[s.SeatID]
		if geometry.ContainsAny(s.DeskROI, persons) {
			h.person++
		}
		if geometry.ContainsAny(s.DeskROI, objects) {
			h.object++
		}
		h.frames++
	}
}

func (t *tally) observations() map[string]Observation {
	out := make(map[string]Observation, len(t.counts))
	for id, h := range t.counts {
		out[id] = h.observation()
	}
	return out
}

func (h hits) observation() Observation {
	n := float64(max(1, h.frames))
	o := Observation{
		PersonRatio: float64(h.person) / n,
		ObjectRatio: float64(h.object) / n,
		FramesSeen:  h.frames,
	}
	o.PersonPresent = o.PersonRatio >= PresenceThreshold
	o.ObjectPresent = o.ObjectRatio >= PresenceThreshold
	o.Empty = !(o.PersonPresent || o.ObjectPresent)
	return o
}
