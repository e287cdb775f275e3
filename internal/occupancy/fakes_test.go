package occupancy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/seatwatch/internal/detect"
	"github.com/iliyamo/seatwatch/internal/geometry"
	"github.com/iliyamo/seatwatch/internal/model"
	"github.com/iliyamo/seatwatch/internal/video"
)

type testFrame struct {
	idx    int
	closed *int
}

func (f testFrame) Close() error { *f.closed++; return nil }

// fakeSampler returns n frames per call, or err when set.
type fakeSampler struct {
	n      int
	err    error
	closed int
	calls  int
}

func (s *fakeSampler) Sample(string, string, time.Duration) ([]video.Frame, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	frames := make([]video.Frame, s.n)
	for i := range frames {
		frames[i] = testFrame{idx: i, closed: &s.closed}
	}
	return frames, nil
}

// scriptDetector answers per frame index.
type scriptDetector struct {
	mu   sync.Mutex
	dets map[int][]detect.Detection
	errs map[int]error
	all  []detect.Detection // used for every frame when dets is nil
}

func (d *scriptDetector) Detect(_ context.Context, f video.Frame) ([]detect.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := f.(testFrame).idx
	if err := d.errs[idx]; err != nil {
		return nil, err
	}
	if d.dets == nil {
		return d.all, nil
	}
	return d.dets[idx], nil
}

func (d *scriptDetector) set(all ...detect.Detection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dets = nil
	d.all = all
}

var errModel = errors.New("inference failed")

func square(x0, y0, size float64) geometry.Polygon {
	return geometry.Polygon{{X: x0, Y: y0}, {X: x0 + size, Y: y0}, {X: x0 + size, Y: y0 + size}, {X: x0, Y: y0 + size}}
}

// box returns a detection centred on (x, y).
func box(label string, x, y float64) detect.Detection {
	return detect.Detection{X1: x - 1, Y1: y - 1, X2: x + 1, Y2: y + 1, Label: label, Score: 0.9}
}

func testFloor() model.FloorConfig {
	return model.FloorConfig{
		FloorID:    "F1",
		StreamPath: "/videos/f1.mp4",
		Seats: []model.SeatSpec{
			{SeatID: "A1", HasPower: true, DeskROI: square(0, 0, 10)},
			{SeatID: "A2", DeskROI: square(20, 0, 10)},
		},
	}
}

var testLabels = detect.NewLabels("person", detect.DefaultObjectLabels)
