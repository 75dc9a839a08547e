package caldav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"availcal/internal/calendar"
)

const productID = "-//availcal//EN"

// ErrNoDates is returned when there is nothing to export.
var ErrNoDates = errors.New("no available days to export")

// uidNamespace scopes the name-based UIDs of published days.
var uidNamespace = uuid.MustParse("6f1d3c52-4b7e-4f0a-9a3e-2d5c1b8e7a10")

// EventUID returns a stable UID for owner's availability on date, so that
// republishing a day overwrites the same calendar object.
func EventUID(owner, date string) string {
	return uuid.NewSHA1(uidNamespace, []byte(owner+"/"+date)).String()
}

// Summary is the title of a published available day.
func Summary(owner string) string {
	if owner == "" {
		return "Available"
	}
	return owner + " available"
}

// toICal converts one available day to an all-day VEVENT.
func toICal(uid, date, summary string, stamp time.Time) (*ical.Component, error) {
	start, err := time.Parse(calendar.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid availability date %q: %w", date, err)
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDate(ical.PropDateTimeStart, start)
	ve.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))
	return ve, nil
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// EncodeAvailability writes dates as an iCalendar stream of all-day events.
func EncodeAvailability(w io.Writer, owner string, dates []string, stamp time.Time) error {
	if len(dates) == 0 {
		return ErrNoDates
	}
	cal := newCalendar()
	for _, date := range dates {
		ve, err := toICal(EventUID(owner, date), date, Summary(owner), stamp)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, ve)
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode availability to iCal format: %w", err)
	}
	return nil
}

// Client publishes available days to one CalDAV calendar.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarPath string
}

// NewClient connects to a CalDAV server and locates calendarName.
func NewClient(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string) (*Client, error) {
	var httpClient webdav.HTTPClient = http.DefaultClient
	if username != "" && password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, username, password)
	}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Found CalDAV calendar", "path", calendarPath)

	return c, nil
}

func (c *Client) objectPath(uid string) string {
	return path.Join(c.calendarPath, uid+".ics")
}

// PutDay creates or replaces the calendar object for one available day.
func (c *Client) PutDay(ctx context.Context, uid, date, summary string) error {
	c.logger.Debug("Publishing available day", "date", date, "uid", uid)

	ve, err := toICal(uid, date, summary, time.Now())
	if err != nil {
		return err
	}
	cal := newCalendar()
	cal.Children = append(cal.Children, ve)

	writer, err := c.webdavClient.Create(ctx, c.objectPath(uid))
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}
	return nil
}

// DeleteDay removes a previously published day.
func (c *Client) DeleteDay(ctx context.Context, uid string) error {
	c.logger.Debug("Removing published day", "uid", uid)
	if err := c.webdavClient.RemoveAll(ctx, c.objectPath(uid)); err != nil {
		return fmt.Errorf("failed to delete event on CalDAV server: %w", err)
	}
	return nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name || strings.Trim(path.Base(cal.Path), "/") == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
