// Package term paints the availability grid on a terminal.
package term

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"availcal/internal/grid"
	"availcal/internal/models"
	"availcal/internal/state"
)

const cellWidth = 4

var weekdays = []string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// Styles maps cell classes to terminal styles.
type Styles struct {
	Title   lipgloss.Style
	Tab     lipgloss.Style
	Active  lipgloss.Style
	Weekday lipgloss.Style
	Notice  lipgloss.Style
	Cells   map[string]lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	cell := lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Right)
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Tab:     lipgloss.NewStyle().Faint(true),
		Active:  lipgloss.NewStyle().Bold(true).Underline(true),
		Weekday: cell.Faint(true),
		Notice:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Cells: map[string]lipgloss.Style{
			grid.ClassAvailable:   cell.Foreground(lipgloss.Color("42")).Bold(true),
			grid.ClassUnavailable: cell.Faint(true),
			grid.Heat0.Class():    cell.Faint(true),
			grid.Heat1.Class():    cell.Foreground(lipgloss.Color("229")),
			grid.Heat2.Class():    cell.Foreground(lipgloss.Color("214")),
			grid.Heat3.Class():    cell.Foreground(lipgloss.Color("42")).Bold(true),
		},
	}
}

func (s Styles) cell(class string) lipgloss.Style {
	if st, ok := s.Cells[class]; ok {
		return st
	}
	return lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Right)
}

// Terminal implements the controller surface by writing frames to out and
// notices to errOut.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	styles Styles
	logger *slog.Logger

	header string
	user   string
	tabs   state.View
	grid   grid.Grid
}

// New creates a Terminal.
func New(out, errOut io.Writer, styles Styles, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Terminal{out: out, errOut: errOut, styles: styles, logger: logger}
}

func (t *Terminal) SetHeader(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header = title
}

func (t *Terminal) SetUser(user *models.User) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if user != nil {
		t.user = user.DisplayName
	}
}

func (t *Terminal) SetTabs(active state.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tabs = active
}

// Paint replaces the grid and draws a full frame.
func (t *Terminal) Paint(g grid.Grid) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grid = g
	fmt.Fprintln(t.out, t.frame())
}

// SetCell updates one day of the current grid without redrawing the frame.
func (t *Terminal) SetCell(date string, available bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.grid.Cells {
		if t.grid.Cells[i].Date != date {
			continue
		}
		class := grid.PersonalClass(available)
		t.grid.Cells[i].Class = class
		fmt.Fprintf(t.out, "%s %s\n", date, t.styles.cell(class).UnsetWidth().Render(class))
		return
	}
}

// Notify shows a message to the user.
func (t *Terminal) Notify(message string) {
	t.logger.Debug("Notifying user", "message", message)
	fmt.Fprintln(t.errOut, t.styles.Notice.Render("! "+message))
}

// Redraw draws the current frame again.
func (t *Terminal) Redraw() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.frame())
}

// frame renders header, tabs and grid. Callers hold t.mu.
func (t *Terminal) frame() string {
	var b strings.Builder
	b.WriteString(t.styles.Title.Render(t.header))
	if t.user != "" {
		b.WriteString("  Hi, " + t.user)
	}
	b.WriteByte('\n')

	for i, v := range []state.View{state.Personal, state.Aggregate} {
		if i > 0 {
			b.WriteString(" | ")
		}
		label := strings.ToUpper(v.String()[:1]) + v.String()[1:]
		if v == t.tabs {
			b.WriteString(t.styles.Active.Render("[" + label + "]"))
		} else {
			b.WriteString(t.styles.Tab.Render(" " + label + " "))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(Render(t.grid, t.styles))
	return b.String()
}

// Render draws a grid as rows of seven columns, followed by the initials of
// free teammates for partially available days.
func Render(g grid.Grid, styles Styles) string {
	var b strings.Builder
	for _, wd := range weekdays {
		b.WriteString(styles.Weekday.Render(wd))
	}
	b.WriteByte('\n')

	col := 0
	blank := strings.Repeat(" ", cellWidth)
	for ; col < g.Leading; col++ {
		b.WriteString(blank)
	}
	for _, c := range g.Cells {
		if col == 7 {
			b.WriteByte('\n')
			col = 0
		}
		label := strconv.Itoa(c.Day)
		if c.Class == grid.ClassAvailable || len(c.Initials) > 0 {
			label += "*"
		}
		b.WriteString(styles.cell(c.Class).Render(label))
		col++
	}
	b.WriteByte('\n')

	for _, c := range g.Cells {
		if len(c.Initials) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%2d: %s\n", c.Day, strings.Join(c.Initials, " "))
	}
	return b.String()
}
