// Package directions replaces straight waypoint polylines with road geometry from an
// OSRM server. Failures always fall back to the waypoints.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ukydev/fleet-control/internal/models"
)

// DefaultOSRMURL is the public OSRM demo server.
const DefaultOSRMURL = "https://router.project-osrm.org"

var ErrNoRoute = errors.New("no route")

// Provider maps ordered waypoints to a road polyline.
type Provider interface {
	Route(ctx context.Context, waypoints []models.Location) ([]models.Location, error)
}

// OSRMClient queries the OSRM route service.
type OSRMClient struct {
	baseURL string
	profile string
	session *http.Client
}

// NewOSRMClient creates a driving-profile client.
func NewOSRMClient(baseURL string) *OSRMClient {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	return &OSRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
		session: &http.Client{Timeout: 15 * time.Second},
	}
}

// Route fetches the full-overview GeoJSON geometry through every waypoint.
func (c *OSRMClient) Route(ctx context.Context, waypoints []models.Location) ([]models.Location, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("need at least 2 waypoints, got %d", len(waypoints))
	}
	coords := make([]string, len(waypoints))
	for i, wp := range waypoints {
		coords[i] = fmt.Sprintf("%.6f,%.6f", wp.Lng, wp.Lat)
	}
	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson", c.baseURL, c.profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var obj struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if len(obj.Routes) == 0 || len(obj.Routes[0].Geometry.Coordinates) < 2 {
		return nil, ErrNoRoute
	}
	raw := obj.Routes[0].Geometry.Coordinates
	pts := make([]models.Location, 0, len(raw))
	for _, c := range raw {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, models.Location{Lat: c[1], Lng: c[0]})
	}
	if len(pts) < 2 {
		return nil, ErrNoRoute
	}
	return pts, nil
}

// Resolve returns the provider's polyline, or the waypoints unchanged when the provider
// fails or fewer than two waypoints are given.
func Resolve(ctx context.Context, p Provider, waypoints []models.Location) []models.Location {
	if len(waypoints) < 2 || p == nil {
		return append([]models.Location(nil), waypoints...)
	}
	line, err := p.Route(ctx, waypoints)
	if err != nil {
		log.WithError(err).WithField("waypoints", len(waypoints)).Warn("Directions fetch failed, using waypoints")
		return append([]models.Location(nil), waypoints...)
	}
	return line
}

const maxConcurrentFetches = 4

// FetchAll resolves every route whose origin and destination warehouses are known. The
// result is keyed by route id. Routes with unknown warehouses are left out.
func FetchAll(ctx context.Context, p Provider, routes []models.Route, warehouses map[string]models.Warehouse) map[string][]models.Location {
	lines := make([][]models.Location, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, r := range routes {
		_, okO := warehouses[r.OriginWarehouseID]
		_, okD := warehouses[r.DestinationWarehouseID]
		if !okO || !okD {
			continue
		}
		i, waypoints := i, r.Waypoints(warehouses)
		g.Go(func() error {
			lines[i] = Resolve(gctx, p, waypoints)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]models.Location, len(routes))
	for i, r := range routes {
		if lines[i] != nil {
			out[r.ID] = lines[i]
		}
	}
	return out
}

// GeometrySetter accepts fetched route geometry.
type GeometrySetter interface {
	Routes() []models.Route
	Warehouses() map[string]models.Warehouse
	SetRouteGeometry(routeID string, geometry []models.Location) bool
}

// Refresh fetches geometry for every route of the store and applies it. It returns the
// number of routes updated.
func Refresh(ctx context.Context, p Provider, store GeometrySetter) int {
	lines := FetchAll(ctx, p, store.Routes(), store.Warehouses())
	updated := 0
	for id, line := range lines {
		if store.SetRouteGeometry(id, line) {
			updated++
		}
	}
	log.WithFields(log.Fields{"routes": updated}).Info("Route geometry refreshed")
	return updated
}
