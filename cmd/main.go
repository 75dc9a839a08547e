package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"availcal/internal/api"
	"availcal/internal/caldav"
	"availcal/internal/calendar"
	"availcal/internal/config"
	"availcal/internal/controller"
	"availcal/internal/state"
	"availcal/internal/syncer"
	"availcal/internal/term"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "availcal",
		Usage:     "View and edit shared team availability from the terminal.",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a TOML config file."},
		},
		Commands: []*cli.Command{
			showCommand(),
			toggleCommand(),
			shellCommand(),
			exportCommand(),
			publishCommand(),
			healthCommand(),
		},
	}
}

var monthFlag = &cli.StringFlag{Name: "month", Aliases: []string{"m"}, Usage: "Month to show as YYYY-MM (default: current month)."}

// session is everything a command needs to talk to the backend.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *api.Client
	terminal *term.Terminal
}

func newSession(c *cli.Context) (*session, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.LogLevel, c.App.ErrWriter)
	terminal := term.New(c.App.Writer, c.App.ErrWriter, term.DefaultStyles(), logger)

	client, err := api.NewClient(api.Options{
		BaseURL:   cfg.BaseURL,
		APIRoot:   cfg.APIRoot,
		UserEmail: cfg.UserEmail,
		Token:     cfg.Token,
		Notifier:  terminal,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	return &session{cfg: cfg, logger: logger, client: client, terminal: terminal}, nil
}

func (s *session) newController(month calendar.Month, view state.View) *controller.Controller {
	st := state.New(month)
	st.View = view
	return controller.New(st, s.client, s.terminal, s.logger)
}

func parseMonth(c *cli.Context) (calendar.Month, error) {
	if !c.IsSet("month") {
		return calendar.Current(time.Now()), nil
	}
	return calendar.ParseMonth(c.String("month"))
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show a month of personal availability or the team heatmap.",
		Flags: []cli.Flag{
			monthFlag,
			&cli.StringFlag{Name: "view", Value: "personal", Usage: "personal or aggregate."},
		},
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			month, err := parseMonth(c)
			if err != nil {
				return err
			}
			view, err := state.ParseView(c.String("view"))
			if err != nil {
				return err
			}

			s.newController(month, view).Start(c.Context)
			return nil
		},
	}
}

func toggleCommand() *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Flip your availability for a day.",
		ArgsUsage: "YYYY-MM-DD",
		Action: func(c *cli.Context) error {
			date := c.Args().First()
			month, err := calendar.MonthOf(date)
			if err != nil {
				return err
			}
			s, err := newSession(c)
			if err != nil {
				return err
			}

			ctrl := s.newController(month, state.Personal)
			ctrl.Start(c.Context)
			return ctrl.Toggle(c.Context, date)
		},
	}
}

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Browse and edit availability interactively.",
		Flags: []cli.Flag{monthFlag},
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			month, err := parseMonth(c)
			if err != nil {
				return err
			}

			ctrl := s.newController(month, state.Personal)
			ctrl.Start(c.Context)
			return runShell(c.Context, ctrl, s.terminal, c.App.Reader, c.App.Writer)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a month of personal availability as an iCalendar file.",
		Flags: []cli.Flag{
			monthFlag,
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "File to write (default: stdout)."},
		},
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			month, err := parseMonth(c)
			if err != nil {
				return err
			}

			owner := ""
			if user, ok := s.client.Me(c.Context); ok {
				owner = user.DisplayName
			}
			dates, err := s.client.FetchAvailability(c.Context)
			if err != nil {
				return fmt.Errorf("failed to fetch availability: %w", err)
			}
			var inMonth []string
			for _, d := range dates {
				if month.Contains(d) {
					inMonth = append(inMonth, d)
				}
			}

			w := c.App.Writer
			if path := c.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("unable to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := caldav.EncodeAvailability(w, owner, inMonth, time.Now()); err != nil {
				if errors.Is(err, caldav.ErrNoDates) {
					s.logger.Warn("Nothing to export.", "month", month.Key())
					return nil
				}
				return err
			}
			s.logger.Info("Exported availability.", "month", month.Key(), "days", len(inMonth))
			return nil
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Publish a month of personal availability to a CalDAV calendar.",
		Flags: []cli.Flag{
			monthFlag,
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be published without making changes."},
		},
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			if err := s.cfg.ValidateCalDAV(); err != nil {
				return err
			}
			month, err := parseMonth(c)
			if err != nil {
				return err
			}
			if c.Bool("dry-run") {
				s.logger.Info("Performing a dry run. No changes will be made.")
			}

			user, ok := s.client.Me(c.Context)
			if !ok {
				return fmt.Errorf("could not determine the current user")
			}

			dav := s.cfg.CalDAV
			target, err := caldav.NewClient(c.Context, s.logger, dav.URL, dav.Username, dav.Password, dav.CalendarName)
			if err != nil {
				return fmt.Errorf("failed to create caldav client: %w", err)
			}

			sy, err := syncer.NewSyncer(s.logger, s.client, target, user.DisplayName, s.cfg.SyncStateFile, c.Bool("dry-run"))
			if err != nil {
				return fmt.Errorf("failed to create syncer: %w", err)
			}
			res, err := sy.Sync(c.Context, month)
			if err != nil {
				return fmt.Errorf("sync cycle failed: %w", err)
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d day(s) could not be published", res.Failed)
			}
			return nil
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the backend is reachable.",
		Action: func(c *cli.Context) error {
			s, err := newSession(c)
			if err != nil {
				return err
			}
			h, err := s.client.Health(c.Context)
			if err != nil {
				return fmt.Errorf("backend is not healthy: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "%s (version %s)\n", h.Status, h.Version)
			return nil
		},
	}
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
