package assistant

import (
	"encoding/json"
	"strings"
)

// Action is a structured command embedded in a model reply. The concrete types are
// ShowRoute, FocusRoute, Dispatch, SuggestVehicle and NoAction.
type Action interface {
	Name() string
	isAction()
}

// ShowRoute makes a route visible on the map.
type ShowRoute struct {
	RouteID string
}

// FocusRoute makes a route visible and moves the camera to it.
type FocusRoute struct {
	RouteID string
}

// Dispatch sends a vehicle, by id or alias, onto a route.
type Dispatch struct {
	VehicleID string
	RouteID   string
}

// SuggestVehicle recommends a vehicle for a route. VehicleID may be empty, in which
// case the orchestrator picks one.
type SuggestVehicle struct {
	VehicleID string
	RouteID   string
}

// NoAction means the reply carried no usable action.
type NoAction struct {
	Reason string
}

func (ShowRoute) Name() string      { return "show_route" }
func (FocusRoute) Name() string     { return "focus_route" }
func (Dispatch) Name() string       { return "dispatch" }
func (SuggestVehicle) Name() string { return "suggest_vehicle" }
func (NoAction) Name() string       { return "" }

func (ShowRoute) isAction()      {}
func (FocusRoute) isAction()     {}
func (Dispatch) isAction()       {}
func (SuggestVehicle) isAction() {}
func (NoAction) isAction()       {}

// ExtractJSON finds the first balanced {...} block in text, skipping braces inside
// quoted strings. It returns the block and the surrounding text with the block removed.
func ExtractJSON(text string) (block, remainder string, ok bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", strings.TrimSpace(text), false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				block = text[start : i+1]
				remainder = strings.TrimSpace(text[:start] + text[i+1:])
				return block, remainder, true
			}
		}
	}
	return "", strings.TrimSpace(text), false
}

type rawAction struct {
	Action string `json:"action"`
	Params struct {
		RouteID   string `json:"routeId"`
		VehicleID string `json:"vehicleId"`
	} `json:"params"`
}

// ParseAction decodes one action block into its variant. Anything unparseable or
// missing a required parameter becomes NoAction.
func ParseAction(block string) Action {
	if block == "" {
		return NoAction{Reason: "no action"}
	}
	var raw rawAction
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return NoAction{Reason: "invalid json: " + err.Error()}
	}
	routeID := strings.ToLower(strings.TrimSpace(raw.Params.RouteID))
	vehicleID := strings.TrimSpace(raw.Params.VehicleID)

	switch raw.Action {
	case "show_route":
		if routeID != "" {
			return ShowRoute{RouteID: routeID}
		}
	case "focus_route":
		if routeID != "" {
			return FocusRoute{RouteID: routeID}
		}
	case "dispatch":
		if routeID != "" && vehicleID != "" {
			return Dispatch{VehicleID: vehicleID, RouteID: routeID}
		}
	case "suggest_vehicle":
		if routeID != "" {
			return SuggestVehicle{VehicleID: vehicleID, RouteID: routeID}
		}
	default:
		return NoAction{Reason: "unknown action " + raw.Action}
	}
	return NoAction{Reason: "missing params for " + raw.Action}
}

// SplitReply separates a model reply into its action and the visible text, with code
// fences removed.
func SplitReply(reply string) (Action, string) {
	block, rest, ok := ExtractJSON(stripFences(reply))
	if !ok {
		return NoAction{Reason: "no action"}, rest
	}
	return ParseAction(block), rest
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	return strings.ReplaceAll(s, "```", "")
}
