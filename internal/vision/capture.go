// Package vision binds the engine to OpenCV: video capture for the stream
// cursor and a YOLO ONNX network for detection.
package vision

import (
	"io"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/iliyamo/seatwatch/internal/video"
)

// Frame owns a decoded image.
type Frame struct {
	Mat gocv.Mat
}

// Close releases the native buffer.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

type capture struct {
	vc *gocv.VideoCapture
}

// OpenCapture opens a file path or stream URL. It satisfies video.Opener.
func OpenCapture(streamPath string) (video.Source, error) {
	vc, err := gocv.OpenVideoCapture(streamPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture %q", streamPath)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("open capture %q: not opened", streamPath)
	}
	return &capture{vc: vc}, nil
}

func (c *capture) IsOpened() bool { return c.vc.IsOpened() }

func (c *capture) FPS() float64 { return c.vc.Get(gocv.VideoCaptureFPS) }

func (c *capture) FrameCount() int { return int(c.vc.Get(gocv.VideoCaptureFrameCount)) }

func (c *capture) Seek(idx int) error {
	c.vc.Set(gocv.VideoCapturePosFrames, float64(idx))
	return nil
}

func (c *capture) Read() (video.Frame, error) {
	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}
	return &Frame{Mat: mat}, nil
}

func (c *capture) Close() error { return c.vc.Close() }
