// Package geometry holds the frame-coordinate primitives used to map
// detections onto seat regions.
package geometry

// Point is a location in frame pixel coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Polygon is an ordered list of vertices. The closing edge from the last
// vertex back to the first is implied.
type Polygon []Point

// edgeBias keeps the crossing computation finite on horizontal edges.
const edgeBias = 1e-9

// PointInPolygon reports whether pt lies inside poly using the even-odd
// ray casting rule. Polygons with fewer than three vertices contain nothing.
func PointInPolygon(pt Point, poly Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i := 0; i < n; i++ {
		a := poly[i]
		b := poly[(i+1)%n]
		if (a.Y > pt.Y) == (b.Y > pt.Y) {
			continue
		}
		crossX := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y+edgeBias) + a.X
		if pt.X < crossX {
			inside = !inside
		}
	}
	return inside
}

// ContainsAny reports whether at least one of pts lies inside poly.
func ContainsAny(poly Polygon, pts []Point) bool {
	for _, p := range pts {
		if PointInPolygon(p, poly) {
			return true
		}
	}
	return false
}

// Area returns the absolute area enclosed by poly (shoelace formula).
func Area(poly Polygon) float64 {
	n := len(poly)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}
