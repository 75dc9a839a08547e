package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"availcal/internal/caldav"
	"availcal/internal/calendar"
)

// SyncState keeps track of which days have been published.
// The key is the ISO date, and the value is the UID of the event on the CalDAV server.
type SyncState map[string]string

// Source lists the days the current user is available.
type Source interface {
	FetchAvailability(ctx context.Context) ([]string, error)
}

// Target stores published days.
type Target interface {
	PutDay(ctx context.Context, uid, date, summary string) error
	DeleteDay(ctx context.Context, uid string) error
}

// Result counts the changes made by one sync cycle.
type Result struct {
	Created int
	Deleted int
	Failed  int
}

// Syncer publishes personal availability to a CalDAV calendar.
type Syncer struct {
	logger    *slog.Logger
	source    Source
	target    Target
	owner     string
	stateFile string
	state     SyncState
	dryRun    bool
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, source Source, target Target, owner, stateFile string, dryRun bool) (*Syncer, error) {
	state, err := loadState(stateFile)
	if err != nil {
		// If the file doesn't exist, we can start with an empty state.
		if os.IsNotExist(err) {
			logger.Info("No sync state file found, starting fresh.", "file", stateFile)
			state = make(SyncState)
		} else {
			return nil, fmt.Errorf("failed to load sync state: %w", err)
		}
	}

	return &Syncer{
		logger:    logger,
		source:    source,
		target:    target,
		owner:     owner,
		stateFile: stateFile,
		state:     state,
		dryRun:    dryRun,
	}, nil
}

// Sync publishes month: newly available days are created and days that are
// no longer available are deleted.
func (s *Syncer) Sync(ctx context.Context, month calendar.Month) (Result, error) {
	var res Result
	s.logger.Info("Starting sync cycle.", "month", month.Key())

	dates, err := s.source.FetchAvailability(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to fetch availability: %w", err)
	}

	wanted := make(map[string]bool)
	for _, d := range dates {
		if month.Contains(d) {
			wanted[d] = true
		}
	}

	for _, date := range sortedKeys(wanted) {
		if _, exists := s.state[date]; exists {
			s.logger.Debug("Day already published, skipping.", "date", date)
			continue
		}
		uid := caldav.EventUID(s.owner, date)
		if s.dryRun {
			s.logger.Info("[DRY RUN] Would publish available day", "date", date)
			res.Created++
			continue
		}
		if err := s.target.PutDay(ctx, uid, date, caldav.Summary(s.owner)); err != nil {
			s.logger.Error("Failed to publish day", "date", date, "error", err)
			res.Failed++
			continue
		}
		s.state[date] = uid
		res.Created++
	}

	for _, date := range sortedKeys(s.state) {
		if !month.Contains(date) || wanted[date] {
			continue
		}
		if s.dryRun {
			s.logger.Info("[DRY RUN] Would remove day", "date", date)
			res.Deleted++
			continue
		}
		if err := s.target.DeleteDay(ctx, s.state[date]); err != nil {
			s.logger.Error("Failed to remove day", "date", date, "error", err)
			res.Failed++
			continue
		}
		delete(s.state, date)
		res.Deleted++
	}

	if !s.dryRun {
		if err := s.saveState(); err != nil {
			return res, err
		}
	}

	s.logger.Info("Sync cycle finished.", "created", res.Created, "deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// loadState loads the sync state from the JSON file.
func loadState(file string) (SyncState, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(SyncState)
	}
	return state, nil
}

// saveState saves the current sync state to the JSON file.
func (s *Syncer) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	if err := os.WriteFile(s.stateFile, data, 0644); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}
