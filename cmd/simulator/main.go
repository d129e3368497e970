package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/fleet"
	"github.com/ukydev/fleet-control/internal/models"
)

// driver keeps the demo fleet busy by dispatching idle vehicles onto free routes.
type driver struct {
	apiURL string
	token  string
	client *http.Client
	rng    *rand.Rand
}

type dispatchPlan struct {
	VehicleID string `json:"vehicle_id"`
	RouteID   string `json:"route_id"`
}

func newDriver(apiURL string, rng *rand.Rand) *driver {
	return &driver{
		apiURL: apiURL,
		client: &http.Client{Timeout: 10 * time.Second},
		rng:    rng,
	}
}

func (d *driver) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, d.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	return d.client.Do(req)
}

func (d *driver) authorizedPost(ctx context.Context, path string, body interface{}) error {
	resp, err := d.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func (d *driver) login(ctx context.Context, username, password string) error {
	resp, err := d.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status: %d", resp.StatusCode)
	}
	var lr models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if lr.Token == "" {
		return fmt.Errorf("login returned no token")
	}
	d.token = lr.Token
	log.WithFields(log.Fields{"username": lr.Operator.Username, "role": lr.Operator.Role}).Info("Logged in")
	return nil
}

func (d *driver) state(ctx context.Context) (fleet.Snapshot, error) {
	var snap fleet.Snapshot
	resp, err := d.do(ctx, http.MethodGet, "/state", nil)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("state request failed with status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("failed to decode state: %w", err)
	}
	return snap, nil
}

// planDispatches pairs idle or available vehicles with routes nobody is driving.
func planDispatches(snap fleet.Snapshot, rng *rand.Rand) []dispatchPlan {
	busy := make(map[string]bool)
	var free []models.Vehicle
	for _, v := range snap.Vehicles {
		switch {
		case v.InRoute():
			busy[v.Assignment.RouteID] = true
		case v.Status == models.StatusIdle || v.Status == models.StatusAvailable:
			free = append(free, v)
		}
	}
	var routes []string
	for _, r := range snap.Routes {
		if !busy[r.ID] {
			routes = append(routes, r.ID)
		}
	}
	if rng != nil {
		rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	}

	plans := make([]dispatchPlan, 0, min(len(free), len(routes)))
	for i := 0; i < len(free) && i < len(routes); i++ {
		plans = append(plans, dispatchPlan{VehicleID: free[i].ID, RouteID: routes[i]})
	}
	return plans
}

// step reads the fleet once and dispatches what it can. It returns the number of
// successful dispatches.
func (d *driver) step(ctx context.Context) (int, error) {
	snap, err := d.state(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, p := range planDispatches(snap, d.rng) {
		if err := d.authorizedPost(ctx, "/dispatch", p); err != nil {
			log.WithError(err).WithFields(log.Fields{"vehicle_id": p.VehicleID, "route_id": p.RouteID}).Warn("Dispatch failed")
			continue
		}
		sent++
		log.WithFields(log.Fields{"vehicle_id": p.VehicleID, "route_id": p.RouteID}).Info("Dispatched vehicle")
	}
	return sent, nil
}

func (d *driver) run(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		if _, err := d.step(ctx); err != nil {
			log.WithError(err).Warn("Simulation step failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8081/api"
	}

	interval := 5 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	seed := time.Now().UnixNano()
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			seed = n
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := newDriver(apiURL, rand.New(rand.NewSource(seed)))
	d.token = os.Getenv("SIM_AUTH_TOKEN")
	if d.token == "" {
		if err := d.login(ctx, os.Getenv("SIM_USERNAME"), os.Getenv("SIM_PASSWORD")); err != nil {
			log.WithError(err).Fatal("Cannot authenticate. Set SIM_AUTH_TOKEN or SIM_USERNAME/SIM_PASSWORD")
		}
	}

	log.WithFields(log.Fields{
		"api_url":  apiURL,
		"interval": interval,
	}).Info("Starting fleet demo driver")

	if err := d.authorizedPost(ctx, "/onboarding/complete", nil); err != nil {
		log.WithError(err).Warn("Could not complete onboarding")
	}
	d.run(ctx, interval)
	log.Info("Demo driver stopped")
}
