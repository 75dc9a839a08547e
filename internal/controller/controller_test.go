package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"availcal/internal/api"
	"availcal/internal/calendar"
	"availcal/internal/grid"
	"availcal/internal/models"
	"availcal/internal/state"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSurface struct {
	header   string
	user     *models.User
	tabs     state.View
	paints   []grid.Grid
	cells    map[string]bool
	notices  []string
	setCalls []Mutation
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{cells: make(map[string]bool)}
}

func (s *fakeSurface) SetHeader(title string) { s.header = title }
func (s *fakeSurface) SetUser(user *models.User) { s.user = user }
func (s *fakeSurface) SetTabs(active state.View) { s.tabs = active }
func (s *fakeSurface) Notify(message string) { s.notices = append(s.notices, message) }
func (s *fakeSurface) SetCell(date string, available bool) {
	s.cells[date] = available
	s.setCalls = append(s.setCalls, Mutation{Date: date, Available: available})
}
func (s *fakeSurface) Paint(g grid.Grid) {
	s.paints = append(s.paints, g)
	for _, c := range g.Cells {
		if g.View == state.Personal {
			s.cells[c.Date] = c.Class == grid.ClassAvailable
		}
	}
}

type fakeGateway struct {
	user      *models.User
	dates     []string
	datesOK   bool
	sums      []models.DaySummary
	sumsOK    bool
	save      *models.StatusResponse
	saveOK    bool
	onSave    func(date string, available bool)
	onLoad    func()
	saveCalls int
}

func (g *fakeGateway) Me(ctx context.Context) (*models.User, bool) {
	return g.user, g.user != nil
}

func (g *fakeGateway) MyAvailability(ctx context.Context) ([]string, bool) {
	if g.onLoad != nil {
		hook := g.onLoad
		g.onLoad = nil
		hook()
	}
	return slices.Clone(g.dates), g.datesOK
}

func (g *fakeGateway) Aggregate(ctx context.Context) ([]models.DaySummary, bool) {
	return g.sums, g.sumsOK
}

func (g *fakeGateway) SetAvailability(ctx context.Context, date string, available bool) (*models.StatusResponse, bool) {
	g.saveCalls++
	if g.onSave != nil {
		g.onSave(date, available)
	}
	return g.save, g.saveOK
}

var march2024 = calendar.Month{Year: 2024, Month: time.March}

func TestStartLoadsPersonalView(t *testing.T) {
	gw := &fakeGateway{
		user:    &models.User{ID: 1, DisplayName: "Kuzco"},
		dates:   []string{"2024-03-01", "2024-03-10"},
		datesOK: true,
	}
	surface := newFakeSurface()
	c := New(state.New(march2024), gw, surface, discard)

	c.Start(context.Background())

	if surface.user == nil || surface.user.DisplayName != "Kuzco" {
		t.Errorf("user badge not set: %+v", surface.user)
	}
	if surface.header != "March 2024" {
		t.Errorf("header = %q", surface.header)
	}
	if len(surface.paints) != 1 {
		t.Fatalf("paints = %d, want 1", len(surface.paints))
	}
	g := surface.paints[0]
	if g.Leading != 5 || len(g.Cells) != 31 {
		t.Errorf("grid leading=%d cells=%d", g.Leading, len(g.Cells))
	}
	if !surface.cells["2024-03-01"] || !surface.cells["2024-03-10"] || surface.cells["2024-03-02"] {
		t.Error("painted availability does not match the fetched dates")
	}
}

func TestStartWithoutIdentityStillLoads(t *testing.T) {
	gw := &fakeGateway{datesOK: true}
	surface := newFakeSurface()
	c := New(state.New(march2024), gw, surface, discard)

	c.Start(context.Background())

	if surface.user != nil {
		t.Error("user should stay absent")
	}
	if len(surface.paints) != 1 {
		t.Errorf("paints = %d, want 1", len(surface.paints))
	}
}

func TestOptimisticToggleRollsBackOnFailure(t *testing.T) {
	st := state.New(march2024)
	gw := &fakeGateway{dates: []string{"2024-03-01"}, datesOK: true}
	surface := newFakeSurface()
	c := New(st, gw, surface, discard)
	c.Start(context.Background())

	gw.onSave = func(date string, available bool) {
		if available {
			t.Errorf("persist call asked for available=%v, want false", available)
		}
		if st.Has("2024-03-01") {
			t.Error("date still in set when the request was issued")
		}
		if surface.cells["2024-03-01"] {
			t.Error("cell still available when the request was issued")
		}
	}

	err := c.Toggle(context.Background(), "2024-03-01")
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Toggle error = %v, want ErrSaveFailed", err)
	}
	if !slices.Equal(st.Availability(), []string{"2024-03-01"}) {
		t.Errorf("availability = %v, want restored", st.Availability())
	}
	if !surface.cells["2024-03-01"] {
		t.Error("cell not flipped back to available")
	}
	if len(surface.notices) != 1 || surface.notices[0] != SaveFailedMessage {
		t.Errorf("notices = %v, want exactly one failure notice", surface.notices)
	}
	want := []Mutation{{"2024-03-01", false}, {"2024-03-01", true}}
	if !slices.Equal(surface.setCalls, want) {
		t.Errorf("cell updates = %v, want %v", surface.setCalls, want)
	}
	if len(surface.paints) != 1 {
		t.Errorf("toggle must not repaint the grid, paints = %d", len(surface.paints))
	}
}

func TestToggleRollsBackOnApplicationError(t *testing.T) {
	st := state.New(march2024)
	gw := &fakeGateway{datesOK: true, save: &models.StatusResponse{Status: "error"}, saveOK: true}
	surface := newFakeSurface()
	c := New(st, gw, surface, discard)
	c.Start(context.Background())

	if err := c.Toggle(context.Background(), "2024-03-05"); !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("Toggle error = %v", err)
	}
	if st.Has("2024-03-05") || surface.cells["2024-03-05"] {
		t.Error("rejected toggle left the day available")
	}
	if len(surface.notices) != 1 {
		t.Errorf("notices = %v", surface.notices)
	}
}

func TestToggleSuccessKeepsOptimisticState(t *testing.T) {
	st := state.New(march2024)
	gw := &fakeGateway{datesOK: true, save: &models.StatusResponse{Status: "ok"}, saveOK: true}
	surface := newFakeSurface()
	c := New(st, gw, surface, discard)
	c.Start(context.Background())

	if err := c.Toggle(context.Background(), "2024-03-05"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !st.Has("2024-03-05") || !surface.cells["2024-03-05"] {
		t.Error("successful toggle did not mark the day available")
	}
	if err := c.Toggle(context.Background(), "2024-03-05"); err != nil {
		t.Fatalf("second Toggle: %v", err)
	}
	if st.Has("2024-03-05") {
		t.Error("second toggle should read the live state and unmark the day")
	}
	if len(surface.notices) != 0 {
		t.Errorf("unexpected notices %v", surface.notices)
	}
}

func TestToggleGuards(t *testing.T) {
	gw := &fakeGateway{datesOK: true, sumsOK: true}
	c := New(state.New(march2024), gw, newFakeSurface(), discard)
	c.Start(context.Background())

	if err := c.Toggle(context.Background(), "2024-04-01"); !errors.Is(err, ErrNotOnGrid) {
		t.Errorf("off-grid toggle error = %v", err)
	}

	c.SwitchTab(context.Background(), state.Aggregate)
	if err := c.Toggle(context.Background(), "2024-03-01"); !errors.Is(err, ErrNotToggleable) {
		t.Errorf("aggregate toggle error = %v", err)
	}
	if gw.saveCalls != 0 {
		t.Errorf("guarded toggles issued %d persist calls", gw.saveCalls)
	}
}

func TestNavigateRollsOverYear(t *testing.T) {
	gw := &fakeGateway{datesOK: true}
	surface := newFakeSurface()
	c := New(state.New(calendar.Month{Year: 2024, Month: time.December}), gw, surface, discard)
	c.Start(context.Background())

	c.Navigate(context.Background(), 1)

	if got := c.Month(); got != (calendar.Month{Year: 2025, Month: time.January}) {
		t.Errorf("month = %+v, want January 2025", got)
	}
	if surface.header != "January 2025" {
		t.Errorf("header = %q", surface.header)
	}
	last := surface.paints[len(surface.paints)-1]
	if last.Month.Year != 2025 || last.Month.Month != time.January {
		t.Errorf("last paint was for %s", last.Month.Key())
	}
}

func TestSwitchTabPaintsHeatmap(t *testing.T) {
	gw := &fakeGateway{
		datesOK: true,
		sums: []models.DaySummary{
			{Date: "2024-03-01", Count: 4, TotalActiveUsers: 4},
			{Date: "2024-03-02", Count: 1, TotalActiveUsers: 4, AvailableUsers: []string{"Pacha"}},
		},
		sumsOK: true,
	}
	surface := newFakeSurface()
	c := New(state.New(march2024), gw, surface, discard)
	c.Start(context.Background())

	c.SwitchTab(context.Background(), state.Aggregate)

	if surface.tabs != state.Aggregate {
		t.Errorf("tabs = %v", surface.tabs)
	}
	g := surface.paints[len(surface.paints)-1]
	if g.View != state.Aggregate {
		t.Fatalf("last paint view = %v", g.View)
	}
	first, _ := g.Cell("2024-03-01")
	second, _ := g.Cell("2024-03-02")
	third, _ := g.Cell("2024-03-03")
	if first.Class != "heat-3" || second.Class != "heat-1" || third.Class != "heat-0" {
		t.Errorf("classes = %s %s %s", first.Class, second.Class, third.Class)
	}
	if !slices.Equal(second.Initials, []string{"P"}) {
		t.Errorf("initials = %v", second.Initials)
	}
}

func TestAggregateFailureFallsBackToEmpty(t *testing.T) {
	gw := &fakeGateway{datesOK: true, sums: []models.DaySummary{{Date: "2024-03-01", Count: 1, TotalActiveUsers: 2}}, sumsOK: true}
	surface := newFakeSurface()
	st := state.New(march2024)
	c := New(st, gw, surface, discard)
	c.SwitchTab(context.Background(), state.Aggregate)

	gw.sums, gw.sumsOK = nil, false
	c.Load(context.Background())

	if len(st.Aggregate()) != 0 {
		t.Errorf("aggregate = %v, want empty after failed fetch", st.Aggregate())
	}
	if len(surface.paints) != 2 {
		t.Errorf("paints = %d, want 2", len(surface.paints))
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	gw := &fakeGateway{dates: []string{"2024-03-01"}, datesOK: true}
	surface := newFakeSurface()
	c := New(state.New(march2024), gw, surface, discard)

	// The March fetch resolves only after navigation to April finished.
	gw.onLoad = func() { c.Navigate(context.Background(), 1) }
	c.Load(context.Background())

	if len(surface.paints) != 1 {
		t.Fatalf("paints = %d, want only the April paint", len(surface.paints))
	}
	if got := surface.paints[0].Month.Month; got != time.April {
		t.Errorf("painted month = %v, want April", got)
	}
}

func TestUnauthorizedAvailabilityStillRenders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/me":
			w.Write([]byte(`{"id":1,"display_name":"Kronk"}`))
		case "/api/availability/me":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	surface := newFakeSurface()
	client, err := api.NewClient(api.Options{
		BaseURL:  srv.URL,
		APIRoot:  "/api",
		Notifier: api.NotifierFunc(surface.Notify),
		Logger:   discard,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	st := state.New(march2024)
	st.ReplaceAvailability([]string{"2024-03-09"})
	c := New(st, client, surface, discard)
	c.Start(context.Background())

	if len(st.Availability()) != 0 {
		t.Errorf("availability = %v, want empty", st.Availability())
	}
	if len(surface.notices) != 1 || surface.notices[0] != api.AccessDeniedMessage {
		t.Errorf("notices = %v", surface.notices)
	}
	if len(surface.paints) != 1 {
		t.Errorf("grid was not rendered after the denied load")
	}
}

func TestPlanToggleInverse(t *testing.T) {
	st := state.New(march2024)
	st.Add("2024-03-01")

	plan := PlanToggle(st, "2024-03-01")
	plan.Forward.Apply(st)
	if st.Has("2024-03-01") {
		t.Fatal("forward mutation did not remove the date")
	}
	plan.Inverse.Apply(st)
	if !slices.Equal(st.Availability(), []string{"2024-03-01"}) {
		t.Errorf("inverse did not restore the set: %v", st.Availability())
	}
}
