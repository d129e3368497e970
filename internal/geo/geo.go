// Package geo holds the pure polyline helpers used by the simulation.
package geo

import (
	"math"

	"github.com/ukydev/fleet-control/internal/models"
)

const earthRadiusKm = 6371.0

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b models.Location) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return earthRadiusKm * c
}

// Length returns the length of the polyline in kilometers.
func Length(line []models.Location) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += Distance(line[i-1], line[i])
	}
	return total
}

// NearestIndex returns the index of the vertex closest to p by squared planar distance.
// The lowest index wins ties. It returns -1 for an empty polyline.
func NearestIndex(line []models.Location, p models.Location) int {
	return NearestIndexFrom(line, p, 0)
}

// NearestIndexFrom is NearestIndex restricted to vertices at or after start.
func NearestIndexFrom(line []models.Location, p models.Location, start int) int {
	if start < 0 {
		start = 0
	}
	best := -1
	bestDist := math.Inf(1)
	for i := start; i < len(line); i++ {
		dLat := line[i].Lat - p.Lat
		dLng := line[i].Lng - p.Lng
		d := dLat*dLat + dLng*dLng
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b models.Location, t float64) models.Location {
	return models.Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lng: a.Lng + (b.Lng-a.Lng)*t}
}

// Interpolate maps a progress fraction in [0,1] onto the polyline by interpolating
// between the two vertices bracketing fraction*(len-1). Polylines with fewer than two
// points yield their only point, or the zero location when empty.
func Interpolate(line []models.Location, fraction float64) models.Location {
	switch len(line) {
	case 0:
		return models.Location{}
	case 1:
		return line[0]
	}
	fraction = clamp01(fraction)
	pos := fraction * float64(len(line)-1)
	i := int(math.Floor(pos))
	if i >= len(line)-1 {
		return line[len(line)-1]
	}
	return Lerp(line[i], line[i+1], pos-float64(i))
}

// IndexAt returns the vertex index at floor(fraction*(len-1)).
func IndexAt(line []models.Location, fraction float64) int {
	if len(line) == 0 {
		return 0
	}
	return int(math.Floor(clamp01(fraction) * float64(len(line)-1)))
}

// PointAt returns the vertex at floor(fraction*len), clamped to the last vertex.
func PointAt(line []models.Location, fraction float64) (models.Location, bool) {
	if len(line) == 0 {
		return models.Location{}, false
	}
	i := int(math.Floor(clamp01(fraction) * float64(len(line))))
	if i > len(line)-1 {
		i = len(line) - 1
	}
	return line[i], true
}

// Midpoint returns the arithmetic mean of the points.
func Midpoint(points ...models.Location) models.Location {
	if len(points) == 0 {
		return models.Location{}
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return models.Location{Lat: lat / n, Lng: lng / n}
}

// Offset moves p along the unit direction (dirLat, dirLng) by the given number of
// latitude degrees. The longitude component is divided by cos(lat) to keep the offset
// metrically uniform.
func Offset(p models.Location, dirLat, dirLng, degrees float64) models.Location {
	scale := math.Cos(toRadians(p.Lat))
	if scale < 1e-6 {
		scale = 1e-6
	}
	return models.Location{
		Lat: p.Lat + dirLat*degrees,
		Lng: p.Lng + dirLng*degrees/scale,
	}
}

func clamp01(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
