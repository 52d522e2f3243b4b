// Package geo generates random coordinates inside city/region presets.
package geo

import "math"

// Point is a WGS-84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Boundaries holds the four corners of a region in clockwise order starting
// top-left. The corners need not be axis-aligned.
type Boundaries struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

// Region is a city preset: a named area with a center, four boundary corners
// and the descriptive location fields written alongside sampled coordinates.
type Region struct {
	Name          string     `json:"name"`
	Country       string     `json:"country"`
	StateProvince string     `json:"state_province"`
	Sublocation   string     `json:"sublocation"`
	Center        Point      `json:"center"`
	Boundaries    Boundaries `json:"boundaries"`
}

// Corners returns the boundary corners in edge order.
func (r Region) Corners() []Point {
	b := r.Boundaries
	return []Point{b.TopLeft, b.TopRight, b.BottomRight, b.BottomLeft}
}

func (p Point) valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) && !math.IsInf(p.Lat, 0) && !math.IsInf(p.Lng, 0)
}

// usableCorners counts distinct finite corners.
func usableCorners(corners []Point) int {
	seen := make(map[Point]struct{}, len(corners))
	for _, c := range corners {
		if c.valid() {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

// Contains reports whether p lies inside the polygon described by corners,
// using the even-odd ray casting rule. Latitude is treated as the y axis.
// Polygons with fewer than three distinct corners have no interior.
func Contains(corners []Point, p Point) bool {
	if usableCorners(corners) < 3 {
		return false
	}
	inside := false
	j := len(corners) - 1
	for i := range corners {
		ci, cj := corners[i], corners[j]
		if (ci.Lat > p.Lat) != (cj.Lat > p.Lat) &&
			p.Lng < (cj.Lng-ci.Lng)*(p.Lat-ci.Lat)/(cj.Lat-ci.Lat)+ci.Lng {
			inside = !inside
		}
		j = i
	}
	return inside
}

// bounds returns the axis-aligned bounding box of corners.
func bounds(corners []Point) (minPt, maxPt Point) {
	minPt = Point{Lat: math.Inf(1), Lng: math.Inf(1)}
	maxPt = Point{Lat: math.Inf(-1), Lng: math.Inf(-1)}
	for _, c := range corners {
		minPt.Lat = math.Min(minPt.Lat, c.Lat)
		minPt.Lng = math.Min(minPt.Lng, c.Lng)
		maxPt.Lat = math.Max(maxPt.Lat, c.Lat)
		maxPt.Lng = math.Max(maxPt.Lng, c.Lng)
	}
	return minPt, maxPt
}
