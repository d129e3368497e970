package fleet

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-control/internal/models"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordTrip(ctx context.Context, trip models.Trip) error {
	args := m.Called(ctx, trip)
	return args.Error(0)
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.IntroOpen = false
	opts = append([]Option{WithRand(rand.New(rand.NewSource(7)))}, opts...)
	return New(cfg, DefaultSeed(), opts...)
}

func TestNew_SeedsState(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()

	assert.Len(t, snap.Vehicles, 10)
	assert.Len(t, snap.Routes, 6)
	assert.Len(t, snap.Warehouses, 4)
	assert.Len(t, snap.Traffic, 6, "every route is seeded at startup")

	rt3, ok := s.Route("rt-003")
	require.True(t, ok)
	// Origin, two stops, destination.
	require.Len(t, rt3.Geometry, 4)
	assert.Equal(t, models.Location{Lat: 32.7684, Lng: -117.1658}, rt3.Geometry[0])
	assert.Equal(t, models.Location{Lat: 32.8715, Lng: -117.2120}, rt3.Geometry[3])

	u45, ok := s.Vehicle("veh-002")
	require.True(t, ok)
	require.True(t, u45.InRoute())
	assert.Equal(t, []string{"stop-004-1"}, u45.Assignment.CompletedStops)
	assert.False(t, u45.Assignment.Position.IsZero())

	chat := s.Chat()
	require.Len(t, chat, 3)
	assert.Equal(t, "welcome-msg", chat[0].ID)
	assert.Contains(t, chat[2].Content, "**U-67** (License: CA-9943)")
	assert.Contains(t, chat[2].Content, "RT-001 Downtown Circuit")
	assert.Contains(t, chat[2].Content, "Downtown Hub → Downtown Hub")
}

func TestDispatch_EndToEnd(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordTrip", mock.Anything, mock.MatchedBy(func(trip models.Trip) bool {
		return trip.VehicleID == "veh-004"
	})).Return(nil).Once()
	rec.On("RecordTrip", mock.Anything, mock.Anything).Return(nil)

	s := newTestStore(t, WithTripRecorder(rec))
	require.True(t, s.Dispatch("veh-004", "rt-003"))

	v, _ := s.Vehicle("veh-004")
	require.Equal(t, models.StatusInRoute, v.Status)
	require.NotNil(t, v.Assignment)
	assert.Equal(t, "rt-003", v.Assignment.RouteID)
	assert.Equal(t, 0.0, v.Assignment.Progress)
	assert.Equal(t, 2, v.Assignment.StopsRemaining)
	assert.Equal(t, 30, v.Assignment.ETA)
	assert.Empty(t, v.Assignment.CompletedStops)

	last := 0.0
	for i := 0; i < 1100; i++ {
		s.Tick()
		v, _ = s.Vehicle("veh-004")
		if !v.InRoute() {
			break
		}
		assert.GreaterOrEqual(t, v.Assignment.Progress, last)
		assert.LessOrEqual(t, v.Assignment.Progress, 1.0)
		last = v.Assignment.Progress
	}

	assert.Equal(t, models.StatusIdle, v.Status)
	assert.Nil(t, v.Assignment)
	assert.Equal(t, "", v.RouteID())
	rec.AssertCalled(t, "RecordTrip", mock.Anything, mock.MatchedBy(func(trip models.Trip) bool {
		return trip.VehicleID == "veh-004" && trip.RouteID == "rt-003" && trip.StopsTotal == 2 &&
			trip.Status == "completed" && trip.Distance > 0
	}))
}

func TestDispatch_Rejections(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Dispatch("veh-008", "rt-001"), "maintenance vehicles stay put")
	assert.False(t, s.Dispatch("veh-404", "rt-001"))
	assert.False(t, s.Dispatch("veh-004", "rt-404"))

	v, _ := s.Vehicle("veh-008")
	assert.Equal(t, models.StatusMaintenance, v.Status)
}

func TestDispatch_ResetsInRouteVehicle(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Dispatch("veh-002", "rt-005"))
	v, _ := s.Vehicle("veh-002")
	assert.Equal(t, "rt-005", v.Assignment.RouteID)
	assert.Equal(t, 0.0, v.Assignment.Progress)
	assert.Empty(t, v.Assignment.CompletedStops)
	assert.Equal(t, 1, v.Assignment.StopsRemaining)
}

func TestTick_PausedWhileIntroOpen(t *testing.T) {
	s := newTestStore(t)
	s.SetIntroOpen(true)
	before, _ := s.Vehicle("veh-001")
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	after, _ := s.Vehicle("veh-001")
	assert.Equal(t, before.Assignment.Progress, after.Assignment.Progress)

	s.CompleteOnboarding()
	s.Tick()
	after, _ = s.Vehicle("veh-001")
	assert.Greater(t, after.Assignment.Progress, before.Assignment.Progress)
}

func TestDriftTraffic_PausedWhileIntroOpen(t *testing.T) {
	tick := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	s := newTestStore(t, WithRand(rand.New(rand.NewSource(3))), WithClock(clock))
	s.SetIntroOpen(true)
	before := s.AllTraffic()
	for i := 0; i < 50; i++ {
		s.DriftTraffic()
	}
	assert.Equal(t, before, s.AllTraffic())

	s.CompleteOnboarding()
	for i := 0; i < 50; i++ {
		s.DriftTraffic()
	}
	assert.NotEqual(t, before, s.AllTraffic())
}

func TestNew_TrafficUsesStoreClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	for _, st := range s.AllTraffic() {
		assert.Equal(t, fixed, st.UpdatedAt, st.RouteID)
	}
}

func TestTick_SkipsUnknownRoute(t *testing.T) {
	s := newTestStore(t)
	s.mu.Lock()
	s.vehicles[s.vehicleIdx["veh-001"]].Assignment.RouteID = "rt-gone"
	s.mu.Unlock()

	s.Tick()
	v, ok := s.Vehicle("veh-001")
	require.True(t, ok)
	assert.Equal(t, models.StatusInRoute, v.Status)
	assert.Equal(t, 0.3, v.Assignment.Progress)
}

func TestTick_CompletionClearsSelection(t *testing.T) {
	s := newTestStore(t)
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.True(t, s.SetFocusedVehicle("veh-003"))
	snap := s.Snapshot()
	assert.Equal(t, "rt-001", snap.FocusedRouteID)
	assert.True(t, snap.Visible("rt-001"))

	s.mu.Lock()
	s.vehicles[s.vehicleIdx["veh-003"]].Assignment.Progress = 0.9995
	s.mu.Unlock()
	s.Tick()

	v, _ := s.Vehicle("veh-003")
	assert.Equal(t, models.StatusIdle, v.Status)
	assert.Nil(t, v.Assignment)
	snap = s.Snapshot()
	assert.Equal(t, "", snap.FocusedRouteID)
	assert.False(t, snap.Visible("rt-001"))

	select {
	case ev := <-events:
		assert.Equal(t, VehicleCompleted{VehicleID: "veh-003", RouteID: "rt-001"}, ev)
	case <-time.After(time.Second):
		t.Fatal("expected a completion event")
	}
}

func TestToggleRouteVisibility_ClearsFocus(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.ToggleRouteVisibility("rt-002"))
	require.True(t, s.SetFocusedRoute("rt-002"))
	assert.True(t, s.Snapshot().Visible("rt-002"))

	require.True(t, s.ToggleRouteVisibility("rt-002"))
	snap := s.Snapshot()
	assert.False(t, snap.Visible("rt-002"))
	assert.Equal(t, "", snap.FocusedRouteID)

	assert.False(t, s.ToggleRouteVisibility("rt-404"))
	assert.False(t, s.SetFocusedRoute("rt-404"))
	assert.False(t, s.SetFocusedWarehouse("wh-404"))
	assert.True(t, s.SetFocusedWarehouse("wh-003"))
	assert.Equal(t, "wh-003", s.Snapshot().FocusedWarehouseID)
}

func TestSetFocusedVehicle_IdleVehicleKeepsRouteFocus(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.SetFocusedRoute("rt-004"))
	require.True(t, s.SetFocusedVehicle("veh-005"))
	snap := s.Snapshot()
	assert.Equal(t, "veh-005", snap.FocusedVehicleID)
	assert.Equal(t, "rt-004", snap.FocusedRouteID)
	assert.False(t, s.SetFocusedVehicle("veh-404"))
}

func TestAddChatMessage_PublishesEvent(t *testing.T) {
	s := newTestStore(t)
	events, unsubscribe := s.Subscribe()

	msg := s.AddChatMessage(models.ChatUser, "where is U-23?", nil)
	assert.True(t, strings.HasPrefix(msg.ID, "msg-"))
	assert.False(t, msg.Timestamp.IsZero())
	assert.Len(t, s.Chat(), 4)

	ev := <-events
	appended, ok := ev.(ChatAppended)
	require.True(t, ok)
	assert.Equal(t, msg.ID, appended.Message.ID)

	unsubscribe()
	_, open := <-events
	assert.False(t, open)
	unsubscribe()
}

func TestInjectScriptedIncident(t *testing.T) {
	s := newTestStore(t)
	s.SetIntroOpen(true)
	_, ok := s.InjectScriptedIncident()
	assert.False(t, ok, "gate holds the incident back")

	s.CompleteOnboarding()
	st, ok := s.InjectScriptedIncident()
	require.True(t, ok)
	assert.Equal(t, models.TrafficClosed, st.Status)
	assert.Equal(t, 45, st.DelayMinutes)
	assert.True(t, st.Simulated)
	require.Len(t, s.Chat(), 4)
	assert.Contains(t, s.Chat()[3].Content, "RT-001 Downtown Circuit")

	_, ok = s.InjectScriptedIncident()
	require.True(t, ok)
	assert.Len(t, s.Chat(), 4, "the alert is sent once")

	for i := 0; i < 20; i++ {
		s.DriftTraffic()
	}
	got, _ := s.Traffic("rt-001")
	assert.Equal(t, models.TrafficClosed, got.Status)
	assert.Equal(t, 45, got.DelayMinutes)
}

func TestInjectScriptedIncident_UnknownRoute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IntroOpen = false
	cfg.IncidentRouteID = "rt-404"
	s := New(cfg, DefaultSeed())
	_, ok := s.InjectScriptedIncident()
	assert.False(t, ok)
}

func TestSetRouteGeometry_SnapsVehicles(t *testing.T) {
	s := newTestStore(t)
	before, _ := s.Vehicle("veh-001")
	rt2, _ := s.Route("rt-002")

	dense := make([]models.Location, 0, 31)
	for i := 0; i < len(rt2.Geometry)-1; i++ {
		a, b := rt2.Geometry[i], rt2.Geometry[i+1]
		for k := 0; k < 10; k++ {
			f := float64(k) / 10
			dense = append(dense, models.Location{Lat: a.Lat + (b.Lat-a.Lat)*f, Lng: a.Lng + (b.Lng-a.Lng)*f})
		}
	}
	dense = append(dense, rt2.Geometry[len(rt2.Geometry)-1])

	require.True(t, s.SetRouteGeometry("rt-002", dense))
	after, _ := s.Vehicle("veh-001")
	assert.InDelta(t, before.Assignment.Position.Lat, after.Assignment.Position.Lat, 0.01)
	assert.InDelta(t, before.Assignment.Progress, after.Assignment.Progress, 0.05)

	assert.False(t, s.SetRouteGeometry("rt-002", dense[:1]))
	assert.False(t, s.SetRouteGeometry("rt-404", dense))
}

func TestStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IntroOpen = false
	cfg.TickInterval = time.Millisecond
	cfg.TrafficInterval = time.Millisecond
	cfg.IncidentDelay = time.Millisecond
	cfg.FrameInterval = 0
	s := New(cfg, DefaultSeed(), WithRand(rand.New(rand.NewSource(1))))

	before, _ := s.Vehicle("veh-001")
	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return len(s.Chat()) == 4
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after, _ := s.Vehicle("veh-001")
	assert.Greater(t, after.Assignment.Progress, before.Assignment.Progress)
}

func TestStart_Twice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IntroOpen = false
	cfg.TickInterval = time.Millisecond
	cfg.IncidentRouteID = ""
	cfg.FrameInterval = 0
	s := New(cfg, DefaultSeed(), WithRand(rand.New(rand.NewSource(1))))

	s.Start(context.Background())
	s.Start(context.Background())
	before, _ := s.Vehicle("veh-001")
	assert.Eventually(t, func() bool {
		v, _ := s.Vehicle("veh-001")
		return v.Assignment == nil || v.Assignment.Progress > before.Assignment.Progress
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	stopped, _ := s.Vehicle("veh-001")
	time.Sleep(20 * time.Millisecond)
	after, _ := s.Vehicle("veh-001")
	assert.Equal(t, stopped, after, "Stop halts every loop")
}
