// Package video keeps one resumable stream cursor per floor so that
// consecutive refreshes walk forward through the camera feed instead of
// re-reading the same frames.
package video

import (
	"errors"
	"io"
)

// ErrStreamUnavailable is returned when a floor's stream cannot be opened
// or read. Callers treat it as "nothing observed" for the cycle.
var ErrStreamUnavailable = errors.New("video stream unavailable")

// Frame is one decoded image. Its concrete type belongs to the Source
// implementation; detectors that understand it type-assert.
type Frame interface {
	io.Closer
}

// Source is an open stream handle.
type Source interface {
	// IsOpened reports whether the handle is healthy.
	IsOpened() bool
	// FPS is the nominal frame rate; may be 0 or NaN when unknown.
	FPS() float64
	// FrameCount is the total number of frames, 0 or negative for live streams.
	FrameCount() int
	// Seek positions the handle so that the next Read returns frame idx.
	Seek(idx int) error
	// Read decodes the next frame. It returns io.EOF at end of stream.
	Read() (Frame, error)
	Close() error
}

// Opener opens a Source for a stream path or URL.
type Opener func(streamPath string) (Source, error)
