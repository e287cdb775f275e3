package detect

import (
	"sort"
	"strconv"
)

// COCOClasses are the class names of the 80-class COCO models, in output
// order.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// YOLOOutput describes a raw YOLOv8 head: Channels rows (4 box values
// followed by one score per class) by Anchors columns, row-major.
type YOLOOutput struct {
	Data     []float32
	Channels int
	Anchors  int
}

// DecodeYOLO turns a raw head into detections scaled to frame pixels.
// Boxes are centre/size in model input pixels; sx and sy map them back to
// the frame. Candidates scoring below conf are dropped.
func DecodeYOLO(out YOLOOutput, classes []string, sx, sy, conf float64) []Detection {
	nc := out.Channels - 4
	if nc <= 0 || out.Anchors <= 0 || len(out.Data) < out.Channels*out.Anchors {
		return nil
	}
	at := func(c, i int) float64 { return float64(out.Data[c*out.Anchors+i]) }

	var dets []Detection
	for i := 0; i < out.Anchors; i++ {
		best, score := -1, 0.0
		for c := 0; c < nc; c++ {
			if v := at(4+c, i); v > score {
				best, score = c, v
			}
		}
		if best < 0 || score < conf {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		dets = append(dets, Detection{
			X1:    (cx - w/2) * sx,
			Y1:    (cy - h/2) * sy,
			X2:    (cx + w/2) * sx,
			Y2:    (cy + h/2) * sy,
			Label: className(classes, best),
			Score: score,
		})
	}
	return dets
}

func className(classes []string, id int) string {
	if id < len(classes) {
		return classes[id]
	}
	return "class_" + strconv.Itoa(id)
}

// IoU is the intersection over union of two boxes.
func IoU(a, b Detection) float64 {
	ix := min(a.X2, b.X2) - max(a.X1, b.X1)
	iy := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS keeps the highest scoring box of every overlapping group. Boxes of
// different labels never suppress each other.
func NMS(dets []Detection, threshold float64) []Detection {
	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var keep []Detection
	used := make([]bool, len(sorted))
	for i := range sorted {
		if used[i] {
			continue
		}
		keep = append(keep, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !used[j] && sorted[j].Label == sorted[i].Label && IoU(sorted[i], sorted[j]) > threshold {
				used[j] = true
			}
		}
	}
	return keep
}
