package spatial

import (
	"math"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidLatLng reports whether lat/lng are finite and inside the WGS84 range
func ValidLatLng(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Centroid calculates the arithmetic centroid of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}

	return Point{
		Lat: sumLat / float64(len(points)),
		Lng: sumLng / float64(len(points)),
	}
}

// WeightedCentroid calculates the weighted centroid of a set of points
func WeightedCentroid(points []Point, weights []float64) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLng, sumWeights float64
	for i, p := range points {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		sumLat += p.Lat * w
		sumLng += p.Lng * w
		sumWeights += w
	}

	if sumWeights == 0 {
		return Centroid(points)
	}

	return Point{
		Lat: sumLat / sumWeights,
		Lng: sumLng / sumWeights,
	}
}

// LineCentroid calculates the centroid of a polyline: segment midpoints weighted
// by segment length in coordinate space. Degenerate lines fall back to the
// vertex centroid.
func LineCentroid(line []Point) Point {
	if len(line) < 2 {
		return Centroid(line)
	}

	mids := make([]Point, 0, len(line)-1)
	lengths := make([]float64, 0, len(line)-1)
	var total float64
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		l := math.Hypot(b.Lat-a.Lat, b.Lng-a.Lng)
		mids = append(mids, Point{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2})
		lengths = append(lengths, l)
		total += l
	}

	if total == 0 {
		return Centroid(line)
	}
	return WeightedCentroid(mids, lengths)
}

// BoundingBox calculates the bounding box of a set of points
// Returns (minLat, minLng, maxLat, maxLng)
func BoundingBox(points []Point) (float64, float64, float64, float64) {
	if len(points) == 0 {
		return 0, 0, 0, 0
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLng, maxLng := points[0].Lng, points[0].Lng

	for _, p := range points[1:] {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lng < minLng {
			minLng = p.Lng
		}
		if p.Lng > maxLng {
			maxLng = p.Lng
		}
	}

	return minLat, minLng, maxLat, maxLng
}

// BoundingBoxArea calculates the area of a bounding box in square meters
func BoundingBoxArea(minLat, minLng, maxLat, maxLng float64) float64 {
	width := HaversineDistance(minLat, minLng, minLat, maxLng)
	height := HaversineDistance(minLat, minLng, maxLat, minLng)
	return width * height
}

// PathLength calculates the total length of a path (sequence of points) in meters
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var totalDist float64
	for i := 1; i < len(points); i++ {
		totalDist += HaversineDistance(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}

	return totalDist
}
