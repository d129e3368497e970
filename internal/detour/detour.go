// Package detour builds local route detours around an incident. A detour is always
// spliced in ahead of every vehicle already on the route.
package detour

import (
	"math"

	"github.com/ukydev/fleet-control/internal/geo"
	"github.com/ukydev/fleet-control/internal/models"
)

// OffsetDegrees is the sideways offset of the outer detour points, in latitude degrees.
// The middle point bulges twice as far.
const OffsetDegrees = 0.0011

// MinPoints is the shortest polyline a detour can be built on.
const MinPoints = 3

// Compute returns a copy of line with three points bulging around avoid, inserted
// between vertex k and k+1 where k is the vertex nearest avoid, raised to minStart.
// Lines shorter than MinPoints, or with no segment left at or after minStart, are
// returned unchanged.
func Compute(line []models.Location, avoid models.Location, minStart int) []models.Location {
	n := len(line)
	if n < MinPoints || minStart > n-2 {
		return append([]models.Location(nil), line...)
	}
	k := geo.NearestIndex(line, avoid)
	if k < minStart {
		k = minStart
	}
	if k > n-2 {
		k = n - 2
	}

	before, after := line[k], line[k+1]
	ux, uy := perpendicular(before, after)
	pre := geo.Offset(geo.Lerp(before, after, 0.25), ux, uy, OffsetDegrees)
	mid := geo.Offset(geo.Lerp(before, after, 0.5), ux, uy, 2*OffsetDegrees)
	post := geo.Offset(geo.Lerp(before, after, 0.75), ux, uy, OffsetDegrees)

	out := make([]models.Location, 0, n+3)
	out = append(out, line[:k+1]...)
	out = append(out, pre, mid, post)
	out = append(out, line[k+1:]...)
	return out
}

// perpendicular returns the unit normal of the chord a->b in (lat, metric lng) space.
// A degenerate chord bulges north.
func perpendicular(a, b models.Location) (float64, float64) {
	scale := math.Cos(a.Lat * math.Pi / 180)
	dLat := b.Lat - a.Lat
	dLng := (b.Lng - a.Lng) * scale
	length := math.Hypot(dLat, dLng)
	if length == 0 {
		return 1, 0
	}
	return -dLng / length, dLat / length
}

// ProgressIndex is the vertex a vehicle has most recently passed.
func ProgressIndex(line []models.Location, a models.Assignment) int {
	return geo.IndexAt(line, a.Progress)
}

// MinForwardIndex returns the first vertex strictly ahead of every assignment on line.
func MinForwardIndex(line []models.Location, assignments []models.Assignment) int {
	start := 0
	for _, a := range assignments {
		if i := ProgressIndex(line, a) + 1; i > start {
			start = i
		}
	}
	return start
}

// Resnap moves an assignment from oldLine onto newLine, where newLine keeps oldLine's
// vertices up to the insertion point. The assignment lands on a vertex of newLine that
// is neither before the vertex it had passed on oldLine nor behind its old progress
// fraction, so a longer line never pulls the vehicle back.
func Resnap(a models.Assignment, oldLine, newLine []models.Location) models.Assignment {
	out := snapFrom(a, newLine, ProgressIndex(oldLine, a))
	if len(newLine) < 2 || out.Progress >= a.Progress {
		return out
	}
	last := len(newLine) - 1
	idx := int(math.Ceil(a.Progress*float64(last) - 1e-9))
	if idx > last {
		idx = last
	}
	out.Position = newLine[idx]
	out.Progress = float64(idx) / float64(last)
	return out
}

// Snap places an assignment on the vertex of line nearest its position.
func Snap(a models.Assignment, line []models.Location) models.Assignment {
	return snapFrom(a, line, 0)
}

func snapFrom(a models.Assignment, line []models.Location, floor int) models.Assignment {
	out := a.Clone()
	if len(line) == 0 {
		return out
	}
	if floor > len(line)-1 {
		floor = len(line) - 1
	}
	idx := geo.NearestIndexFrom(line, a.Position, floor)
	out.Position = line[idx]
	if len(line) > 1 {
		out.Progress = float64(idx) / float64(len(line)-1)
	} else {
		out.Progress = 0
	}
	return out
}
