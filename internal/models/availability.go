package models

// User is the identity returned by the backend for the authenticated caller.
type User struct {
	ID          int    `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active,omitempty"`
}

// DaySummary is one day of the team heatmap.
// Only days with data are sent by the server.
type DaySummary struct {
	Date             string   `json:"date"`               // ISO date, YYYY-MM-DD
	Count            int      `json:"count"`              // Users available on Date
	TotalActiveUsers int      `json:"total_active_users"` // Active users overall
	AvailableUsers   []string `json:"available_users,omitempty"`
}

// SetAvailabilityRequest is the body of POST /availability.
type SetAvailabilityRequest struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

// StatusResponse is the body returned by mutating endpoints.
type StatusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// OK reports whether the server accepted the mutation.
func (r StatusResponse) OK() bool {
	return r.Status != "error"
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
