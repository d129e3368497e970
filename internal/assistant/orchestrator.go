// Package assistant answers operator chat queries. Traffic, list and detour requests are
// handled locally; everything else goes to a language model whose reply may carry one
// JSON action that is applied to the fleet.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/fleet"
	"github.com/ukydev/fleet-control/internal/models"
)

// Fleet is the part of the fleet store the assistant drives.
type Fleet interface {
	Snapshot() fleet.Snapshot
	AddChatMessage(role models.ChatRole, content string, table *models.Table) models.ChatMessage
	ShowRoute(routeID string) bool
	SetFocusedRoute(routeID string) bool
	Dispatch(vehicleID, routeID string) bool
	ProposeDetour(routeID string) ([]models.Location, bool)
	ConfirmDetour(routeID string) bool
	CancelDetour(routeID string) bool
}

var ErrEmptyQuery = errors.New("query is empty")

const actionExecuted = "Action executed."

var (
	routeIDPattern     = regexp.MustCompile(`\brt-\d+\b`)
	confirmationWords  = map[string]bool{"yes": true, "confirm": true, "dispatch": true, "send it": true, "si": true, "ok": true}
	cancellationWords  = map[string]bool{"no": true, "cancel": true, "nope": true}
	suggestionKeywords = []string{"best vehicle", "which vehicle", "what vehicle", "send", "want to"}
	detourKeywords     = []string{"detour", "reroute", "re-route", "avoid"}
)

type pendingDispatch struct {
	vehicleID string
	routeID   string
}

// Orchestrator turns queries into transcript messages and fleet mutations. It keeps at
// most one pending dispatch and one pending detour awaiting the operator's confirmation.
type Orchestrator struct {
	fleet Fleet
	llm   Responder

	mu       sync.Mutex
	dispatch *pendingDispatch
	detour   string
}

// New creates an orchestrator.
func New(f Fleet, llm Responder) *Orchestrator {
	return &Orchestrator{fleet: f, llm: llm}
}

// Handle records the query, answers it and returns the assistant messages it appended.
// Responder failures become apologetic messages, never errors.
func (o *Orchestrator) Handle(ctx context.Context, query string) ([]models.ChatMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.fleet.AddChatMessage(models.ChatUser, query, nil)
	lower := strings.ToLower(query)

	if o.detour != "" {
		if confirmationWords[lower] {
			return o.confirmDetour(), nil
		}
		if cancellationWords[lower] {
			return o.cancelDetour(), nil
		}
	}
	if o.dispatch != nil && confirmationWords[lower] {
		return o.confirmDispatch(), nil
	}

	snap := o.fleet.Snapshot()
	if containsAny(lower, detourKeywords...) {
		return o.proposeDetour(lower, snap), nil
	}
	if text, ok := trafficAnswer(lower, snap); ok {
		return o.reply(text, nil), nil
	}
	if text, table, ok := listTable(lower, snap); ok {
		return o.reply(text, table), nil
	}
	return o.askModel(ctx, query, lower, snap), nil
}

func (o *Orchestrator) reply(text string, table *models.Table) []models.ChatMessage {
	return []models.ChatMessage{o.fleet.AddChatMessage(models.ChatAssistant, text, table)}
}

func (o *Orchestrator) askModel(ctx context.Context, query, lower string, snap fleet.Snapshot) []models.ChatMessage {
	if o.llm == nil {
		return o.reply(FailureMessage(ErrMissingAPIKey), nil)
	}
	raw, err := o.llm.Respond(ctx, query, BuildContext(snap))
	if err != nil {
		log.WithError(err).Warn("Assistant model call failed")
		return o.reply(FailureMessage(err), nil)
	}

	action, text := SplitReply(raw)
	if na, ok := action.(NoAction); ok && strings.Contains(raw, "{") {
		log.WithField("reason", na.Reason).Warn("Ignoring malformed assistant action")
	}

	var out []models.ChatMessage
	if extra := o.apply(action, lower, snap); extra != "" {
		out = append(out, o.fleet.AddChatMessage(models.ChatAssistant, extra, nil))
	}
	if text == "" {
		text = actionExecuted
	}
	return append(out, o.reply(text, nil)...)
}

// apply executes a parsed action. It returns an extra assistant line, if any.
func (o *Orchestrator) apply(action Action, lower string, snap fleet.Snapshot) string {
	routes := snap.RouteMap()
	switch a := action.(type) {
	case ShowRoute:
		if _, ok := routes[a.RouteID]; ok {
			o.fleet.ShowRoute(a.RouteID)
		}
	case FocusRoute:
		if _, ok := routes[a.RouteID]; ok {
			o.fleet.ShowRoute(a.RouteID)
			o.fleet.SetFocusedRoute(a.RouteID)
		}
	case Dispatch:
		id, ok := resolveVehicle(a.VehicleID, snap.Vehicles)
		if _, known := routes[a.RouteID]; ok && known && o.fleet.Dispatch(id, a.RouteID) {
			o.fleet.ShowRoute(a.RouteID)
			o.dispatch = nil
		}
	case SuggestVehicle:
		route, ok := routes[a.RouteID]
		if !ok {
			return ""
		}
		if a.VehicleID != "" {
			if _, ok := resolveVehicle(a.VehicleID, snap.Vehicles); ok && containsAny(lower, suggestionKeywords...) {
				o.dispatch = &pendingDispatch{vehicleID: a.VehicleID, routeID: a.RouteID}
			}
			return ""
		}
		v, ok := SuggestBestVehicle(snap.Vehicles)
		if !ok {
			return ""
		}
		o.dispatch = &pendingDispatch{vehicleID: v.ID, routeID: route.ID}
		return fmt.Sprintf("I recommend dispatching %s (%s) for %s. Would you like me to dispatch it?",
			v.Alias, v.LicensePlate, route.Name)
	}
	return ""
}

func (o *Orchestrator) confirmDispatch() []models.ChatMessage {
	p := o.dispatch
	o.dispatch = nil
	snap := o.fleet.Snapshot()
	route, ok := snap.RouteMap()[strings.ToLower(p.routeID)]
	id, found := resolveVehicle(p.vehicleID, snap.Vehicles)
	if !ok || !found || !o.fleet.Dispatch(id, route.ID) {
		return o.reply("Sorry, I couldn't complete the dispatch. Please try again.", nil)
	}
	o.fleet.ShowRoute(route.ID)
	label := strings.ToUpper(p.vehicleID)
	for _, v := range snap.Vehicles {
		if v.ID == id {
			label = v.Alias
		}
	}
	return o.reply(fmt.Sprintf("✓ Vehicle dispatched successfully! %s is now en route to %s.", label, route.Name), nil)
}

func (o *Orchestrator) proposeDetour(lower string, snap fleet.Snapshot) []models.ChatMessage {
	routes := snap.RouteMap()
	routeID := routeIDIn(lower)
	if routeID == "" {
		for _, st := range snap.Traffic {
			if st.Status == models.TrafficClosed {
				routeID = st.RouteID
				break
			}
		}
	}
	route, ok := routes[routeID]
	if !ok {
		return o.reply("Tell me which route to reroute, for example \"reroute RT-001\".", nil)
	}
	before := len(route.Geometry)
	line, ok := o.fleet.ProposeDetour(route.ID)
	if !ok {
		return o.reply(fmt.Sprintf("I don't have traffic data for %s yet, so I can't plan a detour.", route.Name), nil)
	}
	if len(line) == before {
		o.fleet.CancelDetour(route.ID)
		return o.reply(fmt.Sprintf("%s is too short to route around the incident.", route.Name), nil)
	}
	o.detour = route.ID

	text := fmt.Sprintf("**Detour ready for %s**\n• **Inserted points:** %d\n• **Route points:** %d → %d", route.Name, len(line)-before, before, len(line))
	if st, ok := snap.TrafficMap()[route.ID]; ok && st.Status != models.TrafficNormal {
		text += fmt.Sprintf("\n• **Avoids:** %s incident near %.4f, %.4f", st.Status, st.Incident.Lat, st.Incident.Lng)
	}
	text += "\n\n**Reply \"yes\" to apply the detour or \"cancel\" to discard it.**"
	return o.reply(text, nil)
}

func (o *Orchestrator) confirmDetour() []models.ChatMessage {
	routeID := o.detour
	o.detour = ""
	if !o.fleet.ConfirmDetour(routeID) {
		return o.reply("That detour is no longer pending.", nil)
	}
	return o.reply(fmt.Sprintf("✓ Detour applied to %s. Vehicles on the route were moved onto the new path.", strings.ToUpper(routeID)), nil)
}

func (o *Orchestrator) cancelDetour() []models.ChatMessage {
	routeID := o.detour
	o.detour = ""
	o.fleet.CancelDetour(routeID)
	return o.reply(fmt.Sprintf("Detour for %s discarded. The route is unchanged.", strings.ToUpper(routeID)), nil)
}

// resolveVehicle accepts a vehicle id or a case-insensitive alias such as "u-23".
func resolveVehicle(ref string, vehicles []models.Vehicle) (string, bool) {
	for _, v := range vehicles {
		if v.ID == ref || strings.EqualFold(v.Alias, ref) {
			return v.ID, true
		}
	}
	return "", false
}

func routeIDIn(lower string) string {
	return routeIDPattern.FindString(lower)
}
