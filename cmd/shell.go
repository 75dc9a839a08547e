package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"availcal/internal/calendar"
	"availcal/internal/controller"
	"availcal/internal/state"
)

const shellHelp = `commands:
  next | n              show the next month
  prev | p              show the previous month
  tab personal|aggregate
  toggle | t <day>      flip a day (number or YYYY-MM-DD)
  refresh | r           reload the current view
  help | h
  quit | q`

type redrawer interface {
	Redraw()
}

// runShell reads one command per line and drives ctrl until quit or EOF.
func runShell(ctx context.Context, ctrl *controller.Controller, screen redrawer, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			if quit := runShellCommand(ctx, ctrl, screen, fields, out); quit {
				return nil
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func runShellCommand(ctx context.Context, ctrl *controller.Controller, screen redrawer, fields []string, out io.Writer) bool {
	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true
	case "h", "help", "?":
		fmt.Fprintln(out, shellHelp)
	case "n", "next":
		ctrl.Navigate(ctx, 1)
	case "p", "prev":
		ctrl.Navigate(ctx, -1)
	case "r", "refresh":
		ctrl.Load(ctx)
	case "tab":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: tab personal|aggregate")
			return false
		}
		view, err := state.ParseView(fields[1])
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		ctrl.SwitchTab(ctx, view)
	case "t", "toggle":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: toggle <day|YYYY-MM-DD>")
			return false
		}
		date, err := resolveDay(ctrl.Month(), fields[1])
		if err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		if err := ctrl.Toggle(ctx, date); err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		screen.Redraw()
	default:
		fmt.Fprintf(out, "unknown command %q, type help\n", fields[0])
	}
	return false
}

// resolveDay accepts a day number of month or a full ISO date.
func resolveDay(month calendar.Month, arg string) (string, error) {
	if day, err := strconv.Atoi(arg); err == nil {
		if day < 1 || day > month.Days() {
			return "", fmt.Errorf("%s has no day %d", month, day)
		}
		return month.Date(day), nil
	}
	if _, _, _, err := calendar.ParseDate(arg); err != nil {
		return "", err
	}
	return arg, nil
}
