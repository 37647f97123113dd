// Package geo provides spherical distance and centroid math for venue clustering.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used for haversine distances.
const earthRadiusMeters = 6371000.0

// Point is an immutable latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle distance between two points in meters,
// computed with the haversine formula on a spherical Earth. It is symmetric
// and zero (up to floating precision) iff a == b.
//
// Note: the cluster size thresholds in internal/cluster are applied directly
// to this value. The upstream system described those thresholds as kilometers
// while comparing them against this function's output; the literal numeric
// behavior is kept as-is rather than rescaled.
func Distance(a, b Point) float64 {
	latA := radians(a.Lat)
	latB := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Centroid returns the spherical mean of the given points: each point is
// converted to a unit Cartesian vector, the vectors are averaged
// component-wise, and the average is converted back to latitude/longitude.
// This is the mean direction, not the true surface center; it is cheap,
// stable near the poles, and a good approximation at cluster scale.
//
// Calling Centroid with an empty slice is a caller bug; the result is
// undefined (atan2 of zeros).
func Centroid(points []Point) Point {
	var x, y, z float64
	for _, p := range points {
		lat := radians(p.Lat)
		lng := radians(p.Lng)
		x += math.Cos(lat) * math.Cos(lng)
		y += math.Cos(lat) * math.Sin(lng)
		z += math.Sin(lat)
	}

	n := float64(len(points))
	x /= n
	y /= n
	z /= n

	return Point{
		Lat: degrees(math.Atan2(z, math.Sqrt(x*x+y*y))),
		Lng: degrees(math.Atan2(y, x)),
	}
}

// Radius returns the maximum distance in meters from center to any of the
// given points. A single-point cluster has radius 0.
func Radius(points []Point, center Point) float64 {
	var max float64
	for _, p := range points {
		if d := Distance(p, center); d > max {
			max = d
		}
	}
	return max
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
