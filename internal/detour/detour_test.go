package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-control/internal/geo"
	"github.com/ukydev/fleet-control/internal/models"
)

func eastbound(points int) []models.Location {
	line := make([]models.Location, points)
	for i := range line {
		line[i] = models.Location{Lat: 32.72, Lng: -117.17 + float64(i)*0.002}
	}
	return line
}

func TestCompute_ShortLineUnchanged(t *testing.T) {
	line := eastbound(2)
	out := Compute(line, line[1], 0)
	assert.Equal(t, line, out)

	out[0].Lat = 0
	assert.NotEqual(t, 0.0, line[0].Lat, "result must not alias the input")
}

func TestCompute_InsertsBulge(t *testing.T) {
	line := eastbound(10)
	out := Compute(line, line[6], 0)

	require.Len(t, out, 13)
	assert.Equal(t, line[:7], out[:7])
	assert.Equal(t, line[7:], out[10:])

	pre, mid, post := out[7], out[8], out[9]
	// Eastbound chord: the normal points north.
	assert.InDelta(t, 32.72+OffsetDegrees, pre.Lat, 1e-9)
	assert.InDelta(t, 32.72+2*OffsetDegrees, mid.Lat, 1e-9)
	assert.InDelta(t, 32.72+OffsetDegrees, post.Lat, 1e-9)
	assert.Less(t, line[6].Lng, pre.Lng)
	assert.Less(t, pre.Lng, mid.Lng)
	assert.Less(t, mid.Lng, post.Lng)
	assert.Less(t, post.Lng, line[7].Lng)
}

func TestCompute_ClampsToMinStart(t *testing.T) {
	line := eastbound(10)
	// Incident behind the vehicle: the detour must still go ahead of index 5.
	out := Compute(line, line[2], 5)
	require.Len(t, out, 13)
	assert.Equal(t, line[:6], out[:6])
	assert.NotEqual(t, line[6], out[6])
}

func TestCompute_NoRoomAhead(t *testing.T) {
	line := eastbound(5)
	out := Compute(line, line[2], 4)
	assert.Equal(t, line, out)
}

func TestCompute_LastSegment(t *testing.T) {
	line := eastbound(5)
	out := Compute(line, line[4], 0)
	require.Len(t, out, 8)
	assert.Equal(t, line[:4], out[:4])
	assert.Equal(t, line[4], out[7])
}

func TestMinForwardIndex(t *testing.T) {
	line := eastbound(10)
	assert.Equal(t, 0, MinForwardIndex(line, nil))
	got := MinForwardIndex(line, []models.Assignment{
		{Progress: 1.0 / 9},
		{Progress: 3.0 / 9},
		{Progress: 0},
	})
	assert.Equal(t, 4, got)
}

func TestForwardOnly_ResnapNeverMovesBack(t *testing.T) {
	line := eastbound(10)
	for vehicleIdx := 0; vehicleIdx < 8; vehicleIdx++ {
		for incident := 0; incident < 10; incident++ {
			a := models.Assignment{
				Position: line[vehicleIdx],
				Progress: float64(vehicleIdx) / 9,
			}
			minStart := MinForwardIndex(line, []models.Assignment{a})
			out := Compute(line, line[incident], minStart)
			snapped := Resnap(a, line, out)

			idx := geo.NearestIndex(out, snapped.Position)
			assert.GreaterOrEqual(t, idx, vehicleIdx)
			assert.Equal(t, out[idx], snapped.Position)
			assert.GreaterOrEqual(t, snapped.Progress, a.Progress-1e-9)
		}
	}
}

func TestResnap_DetourScenario(t *testing.T) {
	line := eastbound(10)
	a := models.Assignment{RouteID: "rt-001", Position: line[3], Progress: 3.0 / 9}

	out := Compute(line, line[6], MinForwardIndex(line, []models.Assignment{a}))
	require.GreaterOrEqual(t, len(out), 13)

	snapped := Resnap(a, line, out)
	// 3/9 of the longer line is vertex 4, one past where the vehicle was.
	assert.Equal(t, line[4], snapped.Position)
	assert.InDelta(t, 4.0/12, snapped.Progress, 1e-9)
	assert.Greater(t, geo.NearestIndex(out, snapped.Position), 3)
	assert.Equal(t, "rt-001", snapped.RouteID)

	// Everything from the vehicle up to the incident vertex is untouched.
	assert.Equal(t, line[3:7], out[3:7])
}

func TestResnap_VehicleAheadOfDetour(t *testing.T) {
	line := eastbound(10)
	ahead := models.Assignment{Position: line[8], Progress: 8.0 / 9}
	out := Compute(line, line[2], 0)

	snapped := Resnap(ahead, line, out)
	assert.Equal(t, line[8], snapped.Position)
	assert.InDelta(t, 11.0/12, snapped.Progress, 1e-9)
}

func TestResnap_MidSegmentLandsOnDetour(t *testing.T) {
	line := eastbound(10)
	a := models.Assignment{Position: geo.Lerp(line[5], line[6], 0.5), Progress: 5.5 / 9}
	minStart := MinForwardIndex(line, []models.Assignment{a})
	require.Equal(t, 6, minStart)

	out := Compute(line, line[6], minStart)
	require.Len(t, out, 13)

	// Keeping the fraction puts the vehicle on the middle detour point, ahead of line[6].
	snapped := Resnap(a, line, out)
	assert.Equal(t, out[8], snapped.Position)
	assert.InDelta(t, 8.0/12, snapped.Progress, 1e-9)
	assert.GreaterOrEqual(t, snapped.Progress, a.Progress)
}

func TestSnap_NearestVertex(t *testing.T) {
	line := eastbound(5)
	a := models.Assignment{Position: models.Location{Lat: 32.7201, Lng: line[3].Lng + 0.0001}, Progress: 0.1}
	snapped := Snap(a, line)
	assert.Equal(t, line[3], snapped.Position)
	assert.InDelta(t, 0.75, snapped.Progress, 1e-9)

	empty := Snap(a, nil)
	assert.Equal(t, a.Position, empty.Position)
}
