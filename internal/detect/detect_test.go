package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/seatwatch/internal/geometry"
	"github.com/iliyamo/seatwatch/internal/video"
)

func TestDetectionCenter(t *testing.T) {
	d := Detection{X1: 10, Y1: 20, X2: 30, Y2: 60}
	assert.Equal(t, geometry.Point{X: 20, Y: 40}, d.Center())
}

func TestPartition(t *testing.T) {
	labels := NewLabels("", DefaultObjectLabels)
	dets := []Detection{
		{X1: 0, Y1: 0, X2: 2, Y2: 2, Label: "person"},
		{X1: 4, Y1: 4, X2: 6, Y2: 6, Label: "Laptop"},
		{X1: 8, Y1: 8, X2: 10, Y2: 10, Label: "dog"},
		{X1: 0, Y1: 0, X2: 4, Y2: 4, Label: "cell phone"},
	}

	persons, objects := labels.Partition(dets)
	assert.Equal(t, []geometry.Point{{X: 1, Y: 1}}, persons)
	assert.Equal(t, []geometry.Point{{X: 5, Y: 5}, {X: 2, Y: 2}}, objects)
}

func TestPartitionEmpty(t *testing.T) {
	persons, objects := NewLabels("person", nil).Partition(nil)
	assert.Empty(t, persons)
	assert.Empty(t, objects)
}

func TestDetectorFunc(t *testing.T) {
	var d Detector = DetectorFunc(func(context.Context, video.Frame) ([]Detection, error) {
		return []Detection{{Label: "cup"}}, nil
	})
	got, err := d.Detect(context.Background(), nil)
	assert.NoError(t, err)
	assert.Len(t, got, 1)
}
