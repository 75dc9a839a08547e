package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"availcal/internal/models"
)

const (
	endpointMe              = "/users/me"
	endpointMyAvailability  = "/availability/me"
	endpointAggregate       = "/availability/aggregate"
	endpointSetAvailability = "/availability"
	endpointHealth          = "/health"
)

// decode unmarshals an optional body; a body of the wrong shape is a parse
// failure and yields an absent result.
func decode[T any](c *Client, endpoint string, raw json.RawMessage, ok bool) (T, bool) {
	var v T
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Error("Could not parse API response", "endpoint", endpoint, "error", err)
		return v, false
	}
	return v, true
}

// Me fetches the current user's identity.
func (c *Client) Me(ctx context.Context) (*models.User, bool) {
	raw, ok := c.Call(ctx, endpointMe, nil)
	user, ok := decode[models.User](c, endpointMe, raw, ok)
	if !ok {
		return nil, false
	}
	return &user, true
}

// MyAvailability fetches the dates the current user marked available.
func (c *Client) MyAvailability(ctx context.Context) ([]string, bool) {
	raw, ok := c.Call(ctx, endpointMyAvailability, nil)
	return decode[[]string](c, endpointMyAvailability, raw, ok)
}

// Aggregate fetches the per-day team summaries.
func (c *Client) Aggregate(ctx context.Context) ([]models.DaySummary, bool) {
	raw, ok := c.Call(ctx, endpointAggregate, nil)
	return decode[[]models.DaySummary](c, endpointAggregate, raw, ok)
}

// SetAvailability persists one day of the current user's availability.
// The returned status may still report an application-level error.
func (c *Client) SetAvailability(ctx context.Context, date string, available bool) (*models.StatusResponse, bool) {
	raw, ok := c.Call(ctx, endpointSetAvailability, &Request{
		Method: http.MethodPost,
		Body:   models.SetAvailabilityRequest{Date: date, Available: available},
	})
	status, ok := decode[models.StatusResponse](c, endpointSetAvailability, raw, ok)
	if !ok {
		return nil, false
	}
	return &status, true
}

// FetchAvailability is MyAvailability for callers that need the failure reason.
func (c *Client) FetchAvailability(ctx context.Context) ([]string, error) {
	var dates []string
	if err := c.getJSON(ctx, endpointMyAvailability, &dates); err != nil {
		return nil, err
	}
	return dates, nil
}

// Health fetches the backend health status.
func (c *Client) Health(ctx context.Context) (*models.Health, error) {
	var h models.Health
	if err := c.getJSON(ctx, endpointHealth, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	raw, err := c.Do(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}
