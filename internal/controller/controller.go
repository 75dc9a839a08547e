package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"availcal/internal/calendar"
	"availcal/internal/grid"
	"availcal/internal/models"
	"availcal/internal/state"
)

// SaveFailedMessage is shown when a toggle is rolled back.
const SaveFailedMessage = "Something went wrong saving your date. Try again?"

var (
	// ErrNotToggleable is returned when toggling outside the personal view.
	ErrNotToggleable = errors.New("days can only be toggled in the personal view")
	// ErrNotOnGrid is returned when the date is not in the viewed month.
	ErrNotOnGrid = errors.New("date is not in the viewed month")
	// ErrSaveFailed is returned after a rejected toggle was rolled back.
	ErrSaveFailed = errors.New("saving availability failed")
)

// Gateway is the subset of the API client the controller drives.
type Gateway interface {
	Me(ctx context.Context) (*models.User, bool)
	MyAvailability(ctx context.Context) ([]string, bool)
	Aggregate(ctx context.Context) ([]models.DaySummary, bool)
	SetAvailability(ctx context.Context, date string, available bool) (*models.StatusResponse, bool)
}

// Surface is where the controller paints.
type Surface interface {
	SetHeader(title string)
	SetUser(user *models.User)
	SetTabs(active state.View)
	Paint(g grid.Grid)
	// SetCell repaints a single day of the current grid.
	SetCell(date string, available bool)
	Notify(message string)
}

// Controller orchestrates loading, navigation and toggling.
// The state mutex is never held across an API call.
type Controller struct {
	mu      sync.Mutex
	state   *state.ViewState
	api     Gateway
	surface Surface
	logger  *slog.Logger
	loadSeq uint64
}

// New creates a controller over st.
func New(st *state.ViewState, api Gateway, surface Surface, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{state: st, api: api, surface: surface, logger: logger}
}

// Start fetches the identity, paints the chrome and loads the initial view.
// A failed identity fetch does not stop the load.
func (c *Controller) Start(ctx context.Context) {
	user, ok := c.api.Me(ctx)

	c.mu.Lock()
	if ok && c.state.User == nil {
		c.state.User = user
		c.surface.SetUser(user)
		c.logger.Info("Signed in", "user", user.DisplayName)
	} else if !ok {
		c.logger.Warn("Could not determine the current user")
	}
	c.surface.SetHeader(c.state.Month.String())
	c.surface.SetTabs(c.state.View)
	c.mu.Unlock()

	c.Load(ctx)
}

// Navigate moves the viewed month by delta and reloads.
func (c *Controller) Navigate(ctx context.Context, delta int) {
	c.mu.Lock()
	c.state.Month = c.state.Month.Add(delta)
	c.surface.SetHeader(c.state.Month.String())
	c.mu.Unlock()

	c.Load(ctx)
}

// SwitchTab changes the active view and reloads.
func (c *Controller) SwitchTab(ctx context.Context, view state.View) {
	c.mu.Lock()
	c.state.View = view
	c.surface.SetTabs(view)
	c.mu.Unlock()

	c.Load(ctx)
}

// Load fetches the data for the active view and repaints the grid.
// Responses that arrive after the month or view changed, or after a newer
// load started, are discarded.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	c.loadSeq++
	seq, month, view := c.loadSeq, c.state.Month, c.state.View
	c.mu.Unlock()

	var (
		dates []string
		sums  []models.DaySummary
		ok    bool
	)
	if view == state.Personal {
		dates, ok = c.api.MyAvailability(ctx)
	} else {
		sums, ok = c.api.Aggregate(ctx)
	}
	if !ok {
		c.logger.Warn("Falling back to empty data", "view", view, "month", month.Key())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.loadSeq || month != c.state.Month || view != c.state.View {
		c.logger.Debug("Discarding stale response", "view", view, "month", month.Key())
		return
	}
	if view == state.Personal {
		c.state.ReplaceAvailability(dates)
	} else {
		c.state.ReplaceAggregate(sums)
	}
	c.surface.Paint(grid.Render(c.state.Month, c.state.View, c.state))
}

// Toggle flips the availability of date. The change is applied locally
// before the server is asked; if the server fails or rejects it, the exact
// inverse is applied and the user is notified.
func (c *Controller) Toggle(ctx context.Context, date string) error {
	c.mu.Lock()
	if c.state.View != state.Personal {
		c.mu.Unlock()
		return ErrNotToggleable
	}
	if !c.state.Month.Contains(date) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOnGrid, date)
	}
	plan := PlanToggle(c.state, date)
	c.apply(plan.Forward)
	c.mu.Unlock()

	res, ok := c.api.SetAvailability(ctx, date, plan.Forward.Available)
	if ok && res.OK() {
		c.logger.Info("Saved availability", "date", date, "available", plan.Forward.Available)
		return nil
	}

	c.mu.Lock()
	c.apply(plan.Inverse)
	c.mu.Unlock()

	c.logger.Error("Server rejected availability change", "date", date, "available", plan.Forward.Available)
	c.surface.Notify(SaveFailedMessage)
	return fmt.Errorf("%w: %s", ErrSaveFailed, date)
}

// apply mutates state and the visible cell together. Callers hold c.mu.
func (c *Controller) apply(m Mutation) {
	m.Apply(c.state)
	if c.state.View == state.Personal && c.state.Month.Contains(m.Date) {
		c.surface.SetCell(m.Date, m.Available)
	}
}

// Grid renders the current state without fetching.
func (c *Controller) Grid() grid.Grid {
	c.mu.Lock()
	defer c.mu.Unlock()
	return grid.Render(c.state.Month, c.state.View, c.state)
}

// Month returns the viewed month.
func (c *Controller) Month() calendar.Month {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Month
}

// View returns the active view.
func (c *Controller) View() state.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.View
}

// Available reports whether date is currently marked available.
func (c *Controller) Available(date string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Has(date)
}
