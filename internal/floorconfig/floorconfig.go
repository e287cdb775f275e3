// Package floorconfig loads and validates per-floor seat layouts. Each
// floor lives in its own file named <floor_id>.json, .yaml or .yml.
package floorconfig

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/seatwatch/internal/geometry"
	"github.com/iliyamo/seatwatch/internal/model"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid floor config")
	// ErrFloorNotFound is returned when no file exists for a floor id.
	ErrFloorNotFound = errors.New("floor not found")
)

var extensions = []string{".json", ".yaml", ".yml"}

// Loader reads floor files from Dir. Relative stream paths are resolved
// against StreamRoot.
type Loader struct {
	Dir        string
	StreamRoot string
}

func NewLoader(dir, streamRoot string) *Loader {
	return &Loader{Dir: dir, StreamRoot: streamRoot}
}

// ListFloorIDs returns the sorted ids of every floor file in Dir. A missing
// directory yields no floors.
func (l *Loader) ListFloorIDs() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read floors dir %s", l.Dir)
	}
	seen := map[string]bool{}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !isConfigExt(ext) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads, validates and resolves the floor's configuration.
func (l *Loader) Load(floorID string) (model.FloorConfig, error) {
	if floorID == "" || strings.ContainsAny(floorID, `/\`) || strings.Contains(floorID, "..") {
		return model.FloorConfig{}, errors.Wrapf(ErrInvalidConfig, "bad floor id %q", floorID)
	}
	var (
		data []byte
		err  error
	)
	for _, ext := range extensions {
		data, err = os.ReadFile(filepath.Join(l.Dir, floorID+ext))
		if err == nil || !os.IsNotExist(err) {
			break
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			return model.FloorConfig{}, errors.Wrapf(ErrFloorNotFound, "floor %s", floorID)
		}
		return model.FloorConfig{}, errors.Wrapf(err, "read floor %s", floorID)
	}

	cfg, err := Parse(data)
	if err != nil {
		return model.FloorConfig{}, errors.Wrapf(err, "floor %s", floorID)
	}
	if cfg.FloorID != floorID {
		return model.FloorConfig{}, errors.Wrapf(ErrInvalidConfig, "file %s declares floor_id %q", floorID, cfg.FloorID)
	}
	cfg.StreamPath, err = l.resolve(cfg.StreamPath)
	if err != nil {
		return model.FloorConfig{}, errors.Wrapf(err, "floor %s: resolve stream path", floorID)
	}
	return cfg, nil
}

// resolve turns a relative file path into an absolute one. URLs and
// absolute paths are returned unchanged.
func (l *Loader) resolve(p string) (string, error) {
	if strings.Contains(p, "://") || filepath.IsAbs(p) {
		return p, nil
	}
	root := l.StreamRoot
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(filepath.Join(root, p))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(abs), nil
}

func isConfigExt(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}

type fileSeat struct {
	SeatID   string      `yaml:"seat_id"`
	HasPower flexBool    `yaml:"has_power"`
	DeskROI  [][]float64 `yaml:"desk_roi"`
}

type fileFloor struct {
	FloorID    string     `yaml:"floor_id"`
	StreamPath string     `yaml:"stream_path"`
	FrameSize  []int      `yaml:"frame_size"`
	Seats      []fileSeat `yaml:"seats"`
}

// flexBool accepts true/false as well as 0/1.
type flexBool bool

func (b *flexBool) UnmarshalYAML(n *yaml.Node) error {
	var v bool
	if err := n.Decode(&v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var i int
	if err := n.Decode(&i); err != nil {
		return errors.Errorf("has_power: want bool or 0/1, got %q", n.Value)
	}
	*b = i != 0
	return nil
}

// Parse decodes a JSON or YAML floor document and validates it. The stream
// path is returned as written.
func Parse(data []byte) (model.FloorConfig, error) {
	var f fileFloor
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.FloorConfig{}, errors.Wrapf(ErrInvalidConfig, "decode: %v", err)
	}
	return f.validate()
}

func (f fileFloor) validate() (model.FloorConfig, error) {
	cfg := model.FloorConfig{FloorID: strings.TrimSpace(f.FloorID), StreamPath: strings.TrimSpace(f.StreamPath)}
	if cfg.FloorID == "" {
		return cfg, errors.Wrap(ErrInvalidConfig, "floor_id is empty")
	}
	if cfg.StreamPath == "" {
		return cfg, errors.Wrap(ErrInvalidConfig, "stream_path is empty")
	}
	if f.FrameSize != nil {
		if len(f.FrameSize) != 2 || f.FrameSize[0] <= 0 || f.FrameSize[1] <= 0 {
			return cfg, errors.Wrapf(ErrInvalidConfig, "frame_size must be two positive ints, got %v", f.FrameSize)
		}
		cfg.FrameSize = [2]int{f.FrameSize[0], f.FrameSize[1]}
	}
	if len(f.Seats) == 0 {
		return cfg, errors.Wrap(ErrInvalidConfig, "no seats")
	}

	seen := map[string]bool{}
	for i, s := range f.Seats {
		id := strings.TrimSpace(s.SeatID)
		if id == "" {
			return cfg, errors.Wrapf(ErrInvalidConfig, "seat %d: seat_id is empty", i)
		}
		if seen[id] {
			return cfg, errors.Wrapf(ErrInvalidConfig, "seat %s: duplicate seat_id", id)
		}
		seen[id] = true

		roi, err := polygon(s.DeskROI, cfg.FrameSize)
		if err != nil {
			return cfg, errors.Wrapf(ErrInvalidConfig, "seat %s: %v", id, err)
		}
		cfg.Seats = append(cfg.Seats, model.SeatSpec{SeatID: id, HasPower: bool(s.HasPower), DeskROI: roi})
	}
	return cfg, nil
}

// polygon checks a desk ROI: at least three finite [x, y] points enclosing
// a non-zero area, inside the frame when its size is known.
func polygon(pts [][]float64, frame [2]int) (geometry.Polygon, error) {
	if len(pts) < 3 {
		return nil, errors.Errorf("desk_roi needs at least 3 points, got %d", len(pts))
	}
	poly := make(geometry.Polygon, 0, len(pts))
	for j, p := range pts {
		if len(p) != 2 {
			return nil, errors.Errorf("desk_roi point %d: want [x, y]", j)
		}
		x, y := p[0], p[1]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return nil, errors.Errorf("desk_roi point %d: not finite", j)
		}
		if frame[0] > 0 && (x < 0 || y < 0 || x > float64(frame[0]) || y > float64(frame[1])) {
			return nil, errors.Errorf("desk_roi point %d: (%g, %g) outside frame %dx%d", j, x, y, frame[0], frame[1])
		}
		poly = append(poly, geometry.Point{X: x, Y: y})
	}
	if geometry.Area(poly) == 0 {
		return nil, errors.New("desk_roi has zero area")
	}
	return poly, nil
}
