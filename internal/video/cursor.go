package video

import (
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFPS is assumed when a stream does not report a usable rate.
const DefaultFPS = 30.0

// Cursor is the per-floor read position. It lives for the whole process
// and is only touched while the floor's lock is held.
type Cursor struct {
	FloorID     string
	StreamPath  string
	FPS         float64
	TotalFrames int
	NextFrame   int

	src Source
}

// Healthy reports whether the cursor has an open handle.
func (c *Cursor) Healthy() bool {
	return c.src != nil && c.src.IsOpened()
}

// SampleSize is the number of frames one refresh reads: one second of
// video at the stream's rate.
func (c *Cursor) SampleSize() int {
	n := int(math.Round(c.FPS))
	if c.FPS <= 0 || n <= 0 {
		return int(DefaultFPS)
	}
	return n
}

// Step is how far the cursor moves after a refresh so that the next one
// lands interval seconds later in the video. read is used when the rate
// gives no step at all.
func (c *Cursor) Step(interval time.Duration, read int) int {
	step := int(math.Round(math.Max(0, c.FPS) * math.Max(0, interval.Seconds())))
	if step == 0 {
		return read
	}
	return step
}

func (c *Cursor) release() {
	if c.src != nil {
		_ = c.src.Close()
		c.src = nil
	}
}

// Registry owns every floor's cursor and the lock guarding it. Cursors are
// created lazily and never torn down before Close.
type Registry struct {
	open Opener
	log  zerolog.Logger

	mu      sync.Mutex // guards creation of entries in locks
	locks   sync.Map   // floorID -> *sync.Mutex
	cursors map[string]*Cursor
}

// NewRegistry returns an empty registry that opens streams with open.
func NewRegistry(open Opener, log zerolog.Logger) *Registry {
	return &Registry{open: open, log: log, cursors: map[string]*Cursor{}}
}

// floorLock returns the floor's lock, creating it under the registry lock
// only when it does not exist yet.
func (r *Registry) floorLock(floorID string) *sync.Mutex {
	if l, ok := r.locks.Load(floorID); ok {
		return l.(*sync.Mutex)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, _ := r.locks.LoadOrStore(floorID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// acquire returns the floor's cursor, reopening the stream when the path
// changed or the handle went bad. The floor lock must be held. A failed
// open still yields a cursor, with no frames, so callers degrade instead
// of retrying in a loop.
func (r *Registry) acquire(floorID, streamPath string) *Cursor {
	r.mu.Lock()
	cur := r.cursors[floorID]
	r.mu.Unlock()

	if cur != nil && cur.StreamPath == streamPath && cur.Healthy() {
		return cur
	}
	if cur != nil {
		cur.release()
	}

	cur = &Cursor{FloorID: floorID, StreamPath: streamPath, FPS: DefaultFPS}
	src, err := r.open(streamPath)
	switch {
	case err != nil:
		r.log.Warn().Err(err).Str("floor_id", floorID).Str("stream", streamPath).Msg("open stream failed")
		if src != nil {
			_ = src.Close()
		}
	case src == nil || !src.IsOpened():
		r.log.Warn().Str("floor_id", floorID).Str("stream", streamPath).Msg("stream did not open")
		if src != nil {
			_ = src.Close()
		}
	default:
		cur.src = src
		if fps := src.FPS(); fps > 0 && !math.IsNaN(fps) && !math.IsInf(fps, 0) {
			cur.FPS = fps
		}
		if total := src.FrameCount(); total > 0 {
			cur.TotalFrames = total
		}
	}

	r.mu.Lock()
	r.cursors[floorID] = cur
	r.mu.Unlock()
	return cur
}

// Snapshot returns a copy of the floor's cursor state for inspection.
func (r *Registry) Snapshot(floorID string) (Cursor, bool) {
	l := r.floorLock(floorID)
	l.Lock()
	defer l.Unlock()
	r.mu.Lock()
	cur, ok := r.cursors[floorID]
	r.mu.Unlock()
	if !ok {
		return Cursor{}, false
	}
	cp := *cur
	cp.src = nil
	return cp, true
}

// Close releases every open stream. Only called at process exit.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cursors {
		c.release()
	}
}

// Sample reads the next window of frames for a floor and moves its cursor
// forward by interval of video time, wrapping at the end of a file. Every
// read, seek and cursor update happens under the floor lock; the caller
// owns the returned frames and must close them. ErrStreamUnavailable is
// returned when no handle could be opened.
func (r *Registry) Sample(floorID, streamPath string, interval time.Duration) ([]Frame, error) {
	l := r.floorLock(floorID)
	l.Lock()
	defer l.Unlock()

	cur := r.acquire(floorID, streamPath)
	if !cur.Healthy() {
		return nil, ErrStreamUnavailable
	}

	want := cur.SampleSize()
	if cur.TotalFrames > 0 {
		if err := cur.src.Seek(cur.NextFrame); err != nil {
			r.log.Debug().Err(err).Str("floor_id", floorID).Int("frame", cur.NextFrame).Msg("seek failed, reading from current position")
		}
	}

	frames := make([]Frame, 0, want)
	wrapped := false
	for len(frames) < want {
		f, err := cur.src.Read()
		if err == nil && f != nil {
			frames = append(frames, f)
			continue
		}
		if cur.TotalFrames > 0 && !wrapped {
			wrapped = true
			cur.NextFrame = 0
			if serr := cur.src.Seek(0); serr != nil {
				r.log.Debug().Err(serr).Str("floor_id", floorID).Msg("rewind failed")
				break
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			r.log.Warn().Err(err).Str("floor_id", floorID).Int("frames", len(frames)).Msg("frame read failed")
		}
		break
	}

	step := cur.Step(interval, len(frames))
	if cur.TotalFrames > 0 {
		cur.NextFrame = (cur.NextFrame + step) % cur.TotalFrames
	} else {
		cur.NextFrame += step
	}
	return frames, nil
}
