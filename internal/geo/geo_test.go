package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ukydev/fleet-control/internal/models"
)

func TestDistance(t *testing.T) {
	downtown := models.Location{Lat: 32.7193, Lng: -117.1697}
	missionValley := models.Location{Lat: 32.7684, Lng: -117.1658}

	d := Distance(downtown, missionValley)
	if d < 5.3 || d > 5.6 {
		t.Errorf("Distance out of expected range: %f", d)
	}
	assert.InDelta(t, d, Distance(missionValley, downtown), 1e-9)
	assert.Equal(t, 0.0, Distance(downtown, downtown))
}

func TestNearestIndex(t *testing.T) {
	line := []models.Location{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}, {Lat: 0, Lng: 1}}

	assert.Equal(t, -1, NearestIndex(nil, models.Location{}))
	assert.Equal(t, 2, NearestIndex(line, models.Location{Lat: 0.1, Lng: 2.1}))
	// Vertex 1 and 3 are equally close; the lowest index wins.
	assert.Equal(t, 1, NearestIndex(line, models.Location{Lat: 0, Lng: 1}))
	assert.Equal(t, 3, NearestIndexFrom(line, models.Location{Lat: 0, Lng: 1}, 2))
}

func TestInterpolate(t *testing.T) {
	line := []models.Location{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}, {Lat: 10, Lng: 10}}

	tests := []struct {
		name     string
		fraction float64
		expected models.Location
	}{
		{"start", 0, models.Location{Lat: 0, Lng: 0}},
		{"quarter", 0.25, models.Location{Lat: 0, Lng: 5}},
		{"middle vertex", 0.5, models.Location{Lat: 0, Lng: 10}},
		{"three quarters", 0.75, models.Location{Lat: 5, Lng: 10}},
		{"end", 1, models.Location{Lat: 10, Lng: 10}},
		{"clamped above", 1.5, models.Location{Lat: 10, Lng: 10}},
		{"clamped below", -1, models.Location{Lat: 0, Lng: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interpolate(line, tt.fraction)
			assert.InDelta(t, tt.expected.Lat, got.Lat, 1e-9)
			assert.InDelta(t, tt.expected.Lng, got.Lng, 1e-9)
		})
	}
}

func TestInterpolate_ShortPolylines(t *testing.T) {
	assert.Equal(t, models.Location{}, Interpolate(nil, 0.5))
	only := models.Location{Lat: 1, Lng: 2}
	assert.Equal(t, only, Interpolate([]models.Location{only}, 0.5))
}

func TestPointAtAndIndexAt(t *testing.T) {
	line := make([]models.Location, 10)
	for i := range line {
		line[i] = models.Location{Lat: float64(i)}
	}
	p, ok := PointAt(line, 0.6)
	assert.True(t, ok)
	assert.Equal(t, 6.0, p.Lat)

	p, ok = PointAt(line, 1)
	assert.True(t, ok)
	assert.Equal(t, 9.0, p.Lat)

	_, ok = PointAt(nil, 0.5)
	assert.False(t, ok)

	assert.Equal(t, 3, IndexAt(line, 0.35))
	assert.Equal(t, 9, IndexAt(line, 1))
}

func TestMidpoint(t *testing.T) {
	m := Midpoint(models.Location{Lat: 0, Lng: 0}, models.Location{Lat: 2, Lng: 4})
	assert.Equal(t, models.Location{Lat: 1, Lng: 2}, m)
	assert.Equal(t, models.Location{}, Midpoint())
}

func TestOffset_ScalesLongitude(t *testing.T) {
	p := models.Location{Lat: 60, Lng: 0}
	east := Offset(p, 0, 1, 0.001)
	// At 60 degrees cos(lat) is 0.5, so the longitude offset doubles.
	assert.InDelta(t, 0.002, east.Lng, 1e-9)
	assert.Equal(t, 60.0, east.Lat)

	north := Offset(p, 1, 0, 0.001)
	assert.InDelta(t, 60.001, north.Lat, 1e-9)
	assert.False(t, math.IsNaN(north.Lng))
}
