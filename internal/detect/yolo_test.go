package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// head builds a channels x anchors output from per-anchor columns.
func head(classes int, cols ...[]float32) YOLOOutput {
	ch := 4 + classes
	out := YOLOOutput{Data: make([]float32, ch*len(cols)), Channels: ch, Anchors: len(cols)}
	for i, col := range cols {
		for c, v := range col {
			out.Data[c*len(cols)+i] = v
		}
	}
	return out
}

func TestDecodeYOLO(t *testing.T) {
	classes := []string{"person", "cup"}
	out := head(2,
		[]float32{100, 100, 20, 40, 0.9, 0.1},
		[]float32{300, 200, 10, 10, 0.05, 0.6},
		[]float32{50, 50, 10, 10, 0.1, 0.1},
	)

	dets := DecodeYOLO(out, classes, 2, 0.5, 0.15)
	require.Len(t, dets, 2)

	assert.Equal(t, "person", dets[0].Label)
	assert.InDelta(t, 0.9, dets[0].Score, 1e-6)
	assert.InDelta(t, 180, dets[0].X1, 1e-6)
	assert.InDelta(t, 220, dets[0].X2, 1e-6)
	assert.InDelta(t, 40, dets[0].Y1, 1e-6)
	assert.InDelta(t, 60, dets[0].Y2, 1e-6)

	assert.Equal(t, "cup", dets[1].Label)
	assert.InDelta(t, 600, dets[1].Center().X, 1e-6)
	assert.InDelta(t, 100, dets[1].Center().Y, 1e-6)
}

func TestDecodeYOLOMalformed(t *testing.T) {
	assert.Nil(t, DecodeYOLO(YOLOOutput{Channels: 4, Anchors: 1, Data: make([]float32, 4)}, nil, 1, 1, 0))
	assert.Nil(t, DecodeYOLO(YOLOOutput{Channels: 6, Anchors: 10, Data: make([]float32, 6)}, nil, 1, 1, 0))
}

func TestDecodeYOLOUnknownClass(t *testing.T) {
	dets := DecodeYOLO(head(2, []float32{10, 10, 2, 2, 0, 0.8}), []string{"person"}, 1, 1, 0.1)
	require.Len(t, dets, 1)
	assert.Equal(t, "class_1", dets[0].Label)
}

func TestIoU(t *testing.T) {
	a := Detection{X1: 0, Y1: 0, X2: 10, Y2: 10}
	assert.InDelta(t, 1, IoU(a, a), 1e-9)
	assert.InDelta(t, 25.0/175.0, IoU(a, Detection{X1: 5, Y1: 5, X2: 15, Y2: 15}), 1e-9)
	assert.Zero(t, IoU(a, Detection{X1: 10, Y1: 0, X2: 20, Y2: 10}))
	assert.Zero(t, IoU(Detection{}, Detection{}))
}

func TestNMS(t *testing.T) {
	dets := []Detection{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Label: "person", Score: 0.6},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, Label: "person", Score: 0.9},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, Label: "laptop", Score: 0.5},
		{X1: 50, Y1: 50, X2: 60, Y2: 60, Label: "person", Score: 0.3},
	}
	kept := NMS(dets, 0.2)
	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].Score, 1e-9)
	assert.Equal(t, "laptop", kept[1].Label)
	assert.InDelta(t, 0.3, kept[2].Score, 1e-9)

	assert.Empty(t, NMS(nil, 0.5))
}
