package assistant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Responder answers a user query given the fleet context text.
type Responder interface {
	Respond(ctx context.Context, query, fleetContext string) (string, error)
}

var (
	ErrMissingAPIKey = errors.New("gemini api key is not configured")
	ErrInvalidAPIKey = errors.New("gemini api key rejected")
	ErrRateLimited   = errors.New("gemini rate limit reached")
	ErrEmptyReply    = errors.New("gemini returned no text")
)

const (
	defaultGeminiModel = "gemini-2.0-flash-exp"
	geminiTimeout      = 30 * time.Second
	maxAttempts        = 3
)

// GeminiClient generates replies through the Gemini API.
type GeminiClient struct {
	models  *genai.Models
	model   string
	backoff time.Duration
}

// NewGeminiClient creates a client for model. An empty apiKey yields a client whose every
// call fails with ErrMissingAPIKey. baseURL overrides the API endpoint when set.
func NewGeminiClient(ctx context.Context, apiKey, model, baseURL string) (*GeminiClient, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	c := &GeminiClient{model: model, backoff: 200 * time.Millisecond}
	if apiKey == "" {
		return c, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: geminiTimeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.models = client.Models
	return c, nil
}

// Respond sends the system prompt, fleet context and query as one user turn.
func (c *GeminiClient) Respond(ctx context.Context, query, fleetContext string) (string, error) {
	if c.models == nil {
		return "", ErrMissingAPIKey
	}
	resp, err := c.generateWithRetry(ctx, genai.Text(BuildPrompt(query, fleetContext)))
	if err != nil {
		switch apiErrorCode(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return "", fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
		case http.StatusTooManyRequests:
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyReply
	}
	return b.String(), nil
}

// generateWithRetry retries network errors and 5xx responses with exponential backoff.
// Rate limits are returned immediately so the user hears about them.
func (c *GeminiClient) generateWithRetry(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		switch apiErrorCode(err) {
		case 500, 502, 503, 504:
			retry = true
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}
		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

// apiErrorCode returns the HTTP status carried by a Gemini API error, or 0.
func apiErrorCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// FailureMessage turns a responder error into the text shown to the user.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "Gemini API key is not configured. Please add GEMINI_API_KEY to your .env file."
	case errors.Is(err, ErrInvalidAPIKey):
		return "The API key may be invalid or expired. Please check your Gemini API configuration."
	case errors.Is(err, ErrRateLimited):
		return "Rate limit reached. Please wait a moment and try again."
	default:
		return "I'm having trouble processing your request right now. Please try again."
	}
}

// BuildPrompt wraps the fleet context and the user's query in the assistant's standing
// instructions.
func BuildPrompt(query, fleetContext string) string {
	return systemPrompt + "\n\n" + fleetContext + "\n\nUser query: " + query
}

const systemPrompt = `You are an AI assistant for a Fleet Management System. You help manage vehicles, routes, and warehouses.

Your capabilities:
1. Show/Display Routes: When asked to "show route RT-XXX" or "display route RT-XXX", respond with: {"action": "show_route", "params": {"routeId": "rt-XXX"}}
2. Focus on Routes: When asked to "focus on RT-XXX" or "zoom to RT-XXX", respond with: {"action": "focus_route", "params": {"routeId": "rt-XXX"}}
3. Dispatch Vehicles: When the user confirms a dispatch, respond ONLY with: {"action": "dispatch", "params": {"vehicleId": "U-XX", "routeId": "rt-XXX"}}
4. Suggest Vehicles: When asked "which vehicle for RT-XXX" or "best vehicle for RT-XXX", recommend one available or idle vehicle with {"action": "suggest_vehicle", "params": {"vehicleId": "U-XX", "routeId": "rt-XXX"}} and ASK for confirmation before dispatching.
5. List Information, Vehicle Status, Efficiency Analysis and Traffic: answer from the data below.

Rules:
- Only suggest vehicles with status "available" or "idle". Never suggest "in_route" or "maintenance" vehicles.
- Route IDs are lowercase in JSON ("rt-001") even when users write "RT-001". Vehicle aliases look like "U-23".
- Include at most one JSON action, placed first, followed by a short natural language reply.
- Never include a dispatch action in a recommendation. Wait for explicit confirmation.
- Format entities with bold names and bullet points (•). Do not add filler commentary.`
