// Package detect is the boundary between the occupancy engine and the
// object-detection model. The engine only needs class labels and box
// centres; everything about the model itself stays behind Detector.
package detect

import (
	"context"
	"strings"

	"github.com/iliyamo/seatwatch/internal/geometry"
	"github.com/iliyamo/seatwatch/internal/video"
)

// Detection is one box reported by the model, in frame pixel coordinates.
type Detection struct {
	X1, Y1, X2, Y2 float64
	Label          string
	Score          float64
}

// Center is the midpoint of the bounding box.
func (d Detection) Center() geometry.Point {
	return geometry.Point{X: (d.X1 + d.X2) / 2, Y: (d.Y1 + d.Y2) / 2}
}

// Detector runs the model on a single frame. An empty result means nothing
// was observed. Implementations must not keep the frame after returning.
type Detector interface {
	Detect(ctx context.Context, frame video.Frame) ([]Detection, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, frame video.Frame) ([]Detection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, frame video.Frame) ([]Detection, error) {
	return f(ctx, frame)
}

// DefaultObjectLabels are the portable items that can hold a seat.
var DefaultObjectLabels = []string{
	"backpack", "handbag", "suitcase", "book", "laptop", "cell phone",
	"mouse", "keyboard", "bottle", "cup", "umbrella", "scissors",
}

// Labels decides which detections count as people and which as objects.
type Labels struct {
	Person  string
	Objects map[string]bool
}

// NewLabels builds a label set. Labels are compared case-insensitively.
func NewLabels(person string, objects []string) Labels {
	l := Labels{Person: strings.ToLower(strings.TrimSpace(person)), Objects: make(map[string]bool, len(objects))}
	if l.Person == "" {
		l.Person = "person"
	}
	for _, o := range objects {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			l.Objects[o] = true
		}
	}
	return l
}

// Partition splits detections into person and object centre points.
// Detections with any other label are dropped.
func (l Labels) Partition(dets []Detection) (persons, objects []geometry.Point) {
	for _, d := range dets {
		label := strings.ToLower(d.Label)
		switch {
		case label == l.Person:
			persons = append(persons, d.Center())
		case l.Objects[label]:
			objects = append(objects, d.Center())
		}
	}
	return persons, objects
}
