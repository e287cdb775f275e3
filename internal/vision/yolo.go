package vision

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/iliyamo/seatwatch/internal/detect"
	"github.com/iliyamo/seatwatch/internal/video"
)

// YOLOConfig configures the ONNX detector.
type YOLOConfig struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float64
	NMSThreshold  float64
	Classes       []string // defaults to COCO
}

// YOLO runs a YOLOv8 ONNX export through the OpenCV DNN module. The
// network is not safe for concurrent use, so calls are serialized.
type YOLO struct {
	cfg YOLOConfig

	mu  sync.Mutex
	net gocv.Net
}

// NewYOLO loads the model.
func NewYOLO(cfg YOLOConfig) (*YOLO, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if len(cfg.Classes) == 0 {
		cfg.Classes = detect.COCOClasses
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("load model %q", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set target")
	}
	return &YOLO{cfg: cfg, net: net}, nil
}

// Detect implements detect.Detector for *Frame.
func (y *YOLO) Detect(ctx context.Context, frame video.Frame) ([]detect.Detection, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, errors.Errorf("unsupported frame type %T", frame)
	}
	if f.Mat.Empty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := image.Pt(y.cfg.InputSize, y.cfg.InputSize)
	blob := gocv.BlobFromImage(f.Mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.mu.Lock()
	y.net.SetInput(blob, "")
	out := y.net.Forward("")
	y.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, errors.Errorf("unexpected output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read output")
	}

	sx := float64(f.Mat.Cols()) / float64(y.cfg.InputSize)
	sy := float64(f.Mat.Rows()) / float64(y.cfg.InputSize)
	dets := detect.DecodeYOLO(detect.YOLOOutput{Data: data, Channels: dims[1], Anchors: dims[2]},
		y.cfg.Classes, sx, sy, y.cfg.ConfThreshold)
	return detect.NMS(dets, y.cfg.NMSThreshold), nil
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
