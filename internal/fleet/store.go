// Package fleet owns the live fleet state: vehicles, routes, warehouses, map selection,
// the assistant transcript, traffic and pending detours. All mutations go through Store,
// which also runs the simulation loops for its own lifetime.
package fleet

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/motion"
	"github.com/ukydev/fleet-control/internal/models"
	"github.com/ukydev/fleet-control/internal/traffic"
)

// Config holds the simulation cadence.
type Config struct {
	TickInterval         time.Duration
	TrafficInterval      time.Duration
	IncidentDelay        time.Duration
	IncidentRouteID      string
	IncidentDelayMinutes int
	FrameInterval        time.Duration
	Motion               motion.Config
	// IntroOpen starts the store with the onboarding gate open, pausing simulation.
	IntroOpen bool
}

// DefaultConfig returns the reference cadence.
func DefaultConfig() Config {
	return Config{
		TickInterval:         500 * time.Millisecond,
		TrafficInterval:      20 * time.Second,
		IncidentDelay:        15 * time.Second,
		IncidentRouteID:      "rt-001",
		IncidentDelayMinutes: traffic.DefaultIncidentMinutes,
		FrameInterval:        time.Second,
		Motion:               motion.DefaultConfig(),
		IntroOpen:            true,
	}
}

// TripRecorder archives completed trips.
type TripRecorder interface {
	RecordTrip(ctx context.Context, trip models.Trip) error
}

// SnapshotPublisher receives periodic state snapshots, typically to render map frames.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap Snapshot) error
}

// Option customizes a Store.
type Option func(*Store)

// WithRand sets the random source used for traffic drift.
func WithRand(rng *rand.Rand) Option {
	return func(s *Store) { s.rng = rng }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTripRecorder archives every completed route.
func WithTripRecorder(r TripRecorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithSnapshotPublisher publishes a snapshot every FrameInterval while running.
func WithSnapshotPublisher(p SnapshotPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// Store is the fleet aggregate. It is safe for concurrent use; a single lock serializes
// every write so a motion tick and a detour confirm never interleave.
type Store struct {
	mu  sync.RWMutex
	cfg Config
	now func() time.Time
	rng *rand.Rand

	vehicles   []models.Vehicle
	vehicleIdx map[string]int
	routes     []models.Route
	routeIdx   map[string]int
	warehouses []models.Warehouse
	whByID     map[string]models.Warehouse

	visible          map[string]bool
	focusedRoute     string
	focusedWarehouse string
	focusedVehicle   string

	chat      []models.ChatMessage
	traffic   *traffic.Synthesizer
	pending   map[string][]models.Location
	introOpen bool

	subs   map[int]chan Event
	nextID int

	recorder  TripRecorder
	publisher SnapshotPublisher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a store from seed. Each route starts with its waypoints as geometry and is
// seeded with traffic immediately.
func New(cfg Config, seed Seed, opts ...Option) *Store {
	s := &Store{
		cfg:        cfg,
		now:        time.Now,
		vehicleIdx: make(map[string]int),
		routeIdx:   make(map[string]int),
		whByID:     make(map[string]models.Warehouse),
		visible:    make(map[string]bool),
		pending:    make(map[string][]models.Location),
		subs:       make(map[int]chan Event),
		introOpen:  cfg.IntroOpen,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.traffic = traffic.New(s.rng, s.now)

	for _, w := range seed.Warehouses {
		s.warehouses = append(s.warehouses, w)
		s.whByID[w.ID] = w
	}
	byID := make(map[string]models.Route, len(seed.Routes))
	for _, r := range seed.Routes {
		r = r.Clone()
		if len(r.Geometry) == 0 {
			r.Geometry = r.Waypoints(s.whByID)
		}
		s.routeIdx[r.ID] = len(s.routes)
		s.routes = append(s.routes, r)
		byID[r.ID] = r
		s.traffic.Seed(r, s.whByID)
	}
	for _, sv := range seed.Vehicles {
		v := buildVehicle(sv, byID)
		if v.Assignment != nil {
			v.Assignment.StartedAt = s.now()
		}
		s.vehicleIdx[v.ID] = len(s.vehicles)
		s.vehicles = append(s.vehicles, v)
	}

	now := s.now()
	for _, m := range seedTranscript(s.vehicles, byID, s.whByID) {
		m.Timestamp = now
		s.chat = append(s.chat, m)
	}
	return s
}

// Start runs the background loops until ctx is cancelled or Stop is called. Starting a
// running store is a no-op.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		log.Warn("Fleet simulation already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.every(ctx, s.cfg.TickInterval, func(context.Context) { s.Tick() })
	s.every(ctx, s.cfg.TrafficInterval, func(context.Context) { s.DriftTraffic() })
	if s.publisher != nil {
		s.every(ctx, s.cfg.FrameInterval, s.publishSnapshot)
	}
	if s.cfg.IncidentRouteID != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScriptedIncident(ctx)
		}()
	}
	log.WithFields(log.Fields{
		"tick":     s.cfg.TickInterval,
		"traffic":  s.cfg.TrafficInterval,
		"incident": s.cfg.IncidentRouteID,
	}).Info("Fleet simulation started")
}

// Stop cancels the background loops and waits for them to exit.
func (s *Store) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Store) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// runScriptedIncident waits IncidentDelay, then for the onboarding gate, then injects.
func (s *Store) runScriptedIncident(ctx context.Context) {
	timer := time.NewTimer(s.cfg.IncidentDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	poll := s.cfg.TickInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if _, ok := s.InjectScriptedIncident(); ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Store) publishSnapshot(ctx context.Context) {
	snap := s.Snapshot()
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishSnapshot(pctx, snap); err != nil {
		log.WithError(err).Warn("Failed to publish snapshot")
	}
}

// Gate

// IntroOpen reports whether the onboarding gate is pausing the simulation.
func (s *Store) IntroOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.introOpen
}

// SetIntroOpen opens or clears the onboarding gate. Nothing is lost while paused.
func (s *Store) SetIntroOpen(open bool) {
	s.mu.Lock()
	changed := s.introOpen != open
	s.introOpen = open
	s.mu.Unlock()
	if changed {
		log.WithField("intro_open", open).Info("Onboarding gate changed")
	}
}

// CompleteOnboarding clears the gate and resumes the simulation.
func (s *Store) CompleteOnboarding() { s.SetIntroOpen(false) }

// Dispatch puts a vehicle on a route, resetting any current assignment. It reports false
// when the vehicle or route is unknown or the vehicle is in maintenance.
func (s *Store) Dispatch(vehicleID, routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	vi, ok := s.vehicleIdx[vehicleID]
	if !ok {
		return false
	}
	ri, ok := s.routeIdx[routeID]
	if !ok {
		return false
	}
	v := &s.vehicles[vi]
	if !v.CanDispatch() {
		return false
	}
	route := s.routes[ri]
	a := models.Assignment{
		RouteID:        route.ID,
		Progress:       0,
		StopsRemaining: len(route.Stops),
		ETA:            int(s.cfg.Motion.BaseETAMinutes),
		StartedAt:      s.now(),
	}
	if len(route.Geometry) > 0 {
		a.Position = route.Geometry[0]
	}
	v.Assign(a)
	log.WithFields(log.Fields{
		"vehicle_id": v.ID,
		"alias":      v.Alias,
		"route_id":   route.ID,
	}).Info("Vehicle dispatched")
	return true
}

// Selection

// ToggleRouteVisibility shows or hides a route. Hiding the focused route clears the focus.
func (s *Store) ToggleRouteVisibility(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routeIdx[routeID]; !ok {
		return false
	}
	if s.visible[routeID] {
		delete(s.visible, routeID)
		if s.focusedRoute == routeID {
			s.focusedRoute = ""
		}
		return true
	}
	s.visible[routeID] = true
	return true
}

// ShowRoute makes a route visible.
func (s *Store) ShowRoute(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.routeIdx[routeID]; !ok {
		return false
	}
	s.visible[routeID] = true
	return true
}

// SetFocusedRoute focuses a route, or clears the focus when routeID is empty.
func (s *Store) SetFocusedRoute(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if routeID != "" {
		if _, ok := s.routeIdx[routeID]; !ok {
			return false
		}
	}
	s.focusedRoute = routeID
	return true
}

// SetFocusedWarehouse focuses a warehouse, or clears the focus when id is empty.
func (s *Store) SetFocusedWarehouse(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if _, ok := s.whByID[id]; !ok {
			return false
		}
	}
	s.focusedWarehouse = id
	return true
}

// SetFocusedVehicle focuses a vehicle. A vehicle in route also makes its route visible
// and focused.
func (s *Store) SetFocusedVehicle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.focusedVehicle = ""
		return true
	}
	vi, ok := s.vehicleIdx[id]
	if !ok {
		return false
	}
	s.focusedVehicle = id
	if rid := s.vehicles[vi].RouteID(); rid != "" {
		s.visible[rid] = true
		s.focusedRoute = rid
	}
	return true
}

// Chat

// AddChatMessage appends a message to the transcript and returns it with its id and
// timestamp set.
func (s *Store) AddChatMessage(role models.ChatRole, content string, table *models.Table) models.ChatMessage {
	s.mu.Lock()
	msg := s.appendChatLocked(role, content, table)
	s.mu.Unlock()
	s.publish(ChatAppended{Message: msg})
	return msg
}

func (s *Store) appendChatLocked(role models.ChatRole, content string, table *models.Table) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        "msg-" + uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		Table:     table,
	}
	s.chat = append(s.chat, msg)
	return msg
}

// Chat returns a copy of the transcript.
func (s *Store) Chat() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatMessage(nil), s.chat...)
}

// Reads

// Vehicle returns a copy of a vehicle.
func (s *Store) Vehicle(id string) (models.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vi, ok := s.vehicleIdx[id]
	if !ok {
		return models.Vehicle{}, false
	}
	return s.vehicles[vi].Clone(), true
}

// Route returns a copy of a route.
func (s *Store) Route(id string) (models.Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ri, ok := s.routeIdx[id]
	if !ok {
		return models.Route{}, false
	}
	return s.routes[ri].Clone(), true
}

// Routes returns copies of all routes in seed order.
func (s *Store) Routes() []models.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Route, len(s.routes))
	for i, r := range s.routes {
		out[i] = r.Clone()
	}
	return out
}

// Warehouses returns every warehouse keyed by id.
func (s *Store) Warehouses() map[string]models.Warehouse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Warehouse, len(s.whByID))
	for id, w := range s.whByID {
		out[id] = w
	}
	return out
}

// Traffic returns the traffic state of a route. ok is false for unseeded routes.
func (s *Store) Traffic(routeID string) (models.TrafficState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traffic.Get(routeID)
}

// AllTraffic returns every seeded traffic state ordered by route id.
func (s *Store) AllTraffic() []models.TrafficState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traffic.All()
}

// SetRouteGeometry replaces a route's geometry, typically with fetched directions.
// Vehicles on the route are re-snapped onto it.
func (s *Store) SetRouteGeometry(routeID string, geometry []models.Location) bool {
	if len(geometry) < 2 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ri, ok := s.routeIdx[routeID]
	if !ok {
		return false
	}
	s.replaceGeometryLocked(ri, geometry, false)
	return true
}

// Snapshot is a consistent copy of the whole store.
type Snapshot struct {
	Vehicles           []models.Vehicle      `json:"vehicles"`
	Routes             []models.Route        `json:"routes"`
	Warehouses         []models.Warehouse    `json:"warehouses"`
	VisibleRouteIDs    []string              `json:"visible_route_ids"`
	FocusedRouteID     string                `json:"focused_route_id,omitempty"`
	FocusedWarehouseID string                `json:"focused_warehouse_id,omitempty"`
	FocusedVehicleID   string                `json:"focused_vehicle_id,omitempty"`
	Traffic            []models.TrafficState `json:"traffic"`
	PendingDetours     []string              `json:"pending_detours"`
	IntroOpen          bool                  `json:"intro_open"`
	TakenAt            time.Time             `json:"taken_at"`
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Vehicles:           make([]models.Vehicle, len(s.vehicles)),
		Routes:             make([]models.Route, len(s.routes)),
		Warehouses:         append([]models.Warehouse(nil), s.warehouses...),
		VisibleRouteIDs:    make([]string, 0, len(s.visible)),
		FocusedRouteID:     s.focusedRoute,
		FocusedWarehouseID: s.focusedWarehouse,
		FocusedVehicleID:   s.focusedVehicle,
		Traffic:            s.traffic.All(),
		PendingDetours:     make([]string, 0, len(s.pending)),
		IntroOpen:          s.introOpen,
		TakenAt:            s.now(),
	}
	for i, v := range s.vehicles {
		snap.Vehicles[i] = v.Clone()
	}
	for i, r := range s.routes {
		snap.Routes[i] = r.Clone()
	}
	for id := range s.visible {
		snap.VisibleRouteIDs = append(snap.VisibleRouteIDs, id)
	}
	sort.Strings(snap.VisibleRouteIDs)
	for id := range s.pending {
		snap.PendingDetours = append(snap.PendingDetours, id)
	}
	sort.Strings(snap.PendingDetours)
	return snap
}

// RouteMap indexes the snapshot routes by id.
func (snap Snapshot) RouteMap() map[string]models.Route {
	out := make(map[string]models.Route, len(snap.Routes))
	for _, r := range snap.Routes {
		out[r.ID] = r
	}
	return out
}

// WarehouseMap indexes the snapshot warehouses by id.
func (snap Snapshot) WarehouseMap() map[string]models.Warehouse {
	out := make(map[string]models.Warehouse, len(snap.Warehouses))
	for _, w := range snap.Warehouses {
		out[w.ID] = w
	}
	return out
}

// TrafficMap indexes the snapshot traffic by route id.
func (snap Snapshot) TrafficMap() map[string]models.TrafficState {
	out := make(map[string]models.TrafficState, len(snap.Traffic))
	for _, t := range snap.Traffic {
		out[t.RouteID] = t
	}
	return out
}

// Visible reports whether a route is shown in the snapshot.
func (snap Snapshot) Visible(routeID string) bool {
	for _, id := range snap.VisibleRouteIDs {
		if id == routeID {
			return true
		}
	}
	return false
}
