// Package syncer decides, per task and destination, whether to create the
// event through the Google Calendar API, generate a downloadable .ics
// document, or open a prefilled creation page. The direct path falls back
// to the prefill page when authorization or the API call fails.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"simplesync/internal/auth"
	"simplesync/internal/format"
	"simplesync/internal/google"
	"simplesync/internal/models"
)

// TokenProvider supplies the bearer credential for the direct path.
type TokenProvider interface {
	// StoredAccessToken returns the cached access token if it is still valid.
	StoredAccessToken() (string, bool)
	// SignIn runs one interactive authorization attempt.
	SignIn(ctx context.Context) (*oauth2.Token, error)
}

// Uploader optionally pushes the formatted event to a CalDAV calendar in
// addition to writing the .ics file.
type Uploader interface {
	PutTask(ctx context.Context, task models.Task, now time.Time) error
}

// Action describes what a sync request ended up doing.
type Action string

const (
	// ActionCreated means the event was created through the API.
	ActionCreated Action = "created"
	// ActionDownloaded means an .ics document was written.
	ActionDownloaded Action = "downloaded"
	// ActionOpenedURL means a prefill page was opened.
	ActionOpenedURL Action = "opened-url"
	// ActionFallbackURL means the direct path failed and the prefill page
	// was opened instead.
	ActionFallbackURL Action = "fallback-url"
)

// Result reports the outcome of one sync request. Detail holds the written
// file path, the opened URL, or the created event id.
type Result struct {
	Destination models.Destination
	Action      Action
	Detail      string
}

// Syncer routes tasks to their destinations.
type Syncer struct {
	logger    *slog.Logger
	auth      TokenProvider
	outputDir string
	uploader  Uploader
	dryRun    bool

	createEvent func(ctx context.Context, accessToken string, task models.Task) (string, error)
	openURL     func(url string) error
	now         func() time.Time
}

// New creates a Syncer. outputDir receives the .ics documents for the
// file-based destinations; uploader may be nil.
func New(logger *slog.Logger, tokens TokenProvider, outputDir string, uploader Uploader, dryRun bool) *Syncer {
	s := &Syncer{
		logger:    logger,
		auth:      tokens,
		outputDir: outputDir,
		uploader:  uploader,
		dryRun:    dryRun,
		openURL:   auth.OpenBrowser,
		now:       time.Now,
	}
	s.createEvent = func(ctx context.Context, accessToken string, task models.Task) (string, error) {
		client, err := google.NewClient(ctx, logger, accessToken)
		if err != nil {
			return "", err
		}
		created, err := client.CreateEvent(ctx, task)
		if err != nil {
			return "", err
		}
		return created.Id, nil
	}
	return s
}

// Sync exports one task to one destination. Validation failures are the
// only errors that propagate; every failure on the direct Google path is
// converted into the prefill fallback.
func (s *Syncer) Sync(ctx context.Context, task models.Task, dest models.Destination) (*Result, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	switch dest {
	case models.DestinationApple, models.DestinationOutlook:
		return s.syncFile(ctx, task, dest)
	case models.DestinationYahoo:
		url, err := format.YahooCalendarURL(task)
		if err != nil {
			return nil, err
		}
		return s.openPage(dest, ActionOpenedURL, url), nil
	case models.DestinationGoogle:
		return s.syncGoogle(ctx, task)
	default:
		return nil, fmt.Errorf("unknown destination %q", dest)
	}
}

// syncFile writes the .ics document for the file-based destinations and,
// when an uploader is configured, also pushes the event over CalDAV.
func (s *Syncer) syncFile(ctx context.Context, task models.Task, dest models.Destination) (*Result, error) {
	now := s.now()
	filename, data, err := format.ICSDocument(task, now)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.outputDir, filename)

	if s.dryRun {
		s.logger.Info("[DRY RUN] Would write calendar file", "path", path, "title", task.Title)
		return &Result{Destination: dest, Action: ActionDownloaded, Detail: path}, nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write calendar file: %w", err)
	}
	s.logger.Info("Wrote calendar file", "path", path, "title", task.Title)

	if s.uploader != nil {
		if err := s.uploader.PutTask(ctx, task, now); err != nil {
			// The download already succeeded; the CalDAV push is best-effort.
			s.logger.Error("CalDAV push failed", "title", task.Title, "error", err)
		}
	}
	return &Result{Destination: dest, Action: ActionDownloaded, Detail: path}, nil
}

// syncGoogle attempts the direct API path: cached credential first, then
// one interactive sign-in and one retry, then the prefill fallback.
func (s *Syncer) syncGoogle(ctx context.Context, task models.Task) (*Result, error) {
	if s.dryRun {
		s.logger.Info("[DRY RUN] Would create Google Calendar event", "title", task.Title)
		return &Result{Destination: models.DestinationGoogle, Action: ActionCreated}, nil
	}

	if token, ok := s.auth.StoredAccessToken(); ok {
		eventID, err := s.createEvent(ctx, token, task)
		if err == nil {
			return &Result{Destination: models.DestinationGoogle, Action: ActionCreated, Detail: eventID}, nil
		}
		s.logger.Warn("Direct calendar insert failed with cached credential, re-authorizing", "title", task.Title, "error", err)
	}

	if token, err := s.auth.SignIn(ctx); err != nil {
		s.logger.Warn("Authorization failed, falling back to prefill page", "title", task.Title, "error", err)
	} else {
		eventID, err := s.createEvent(ctx, token.AccessToken, task)
		if err == nil {
			return &Result{Destination: models.DestinationGoogle, Action: ActionCreated, Detail: eventID}, nil
		}
		s.logger.Warn("Direct calendar insert failed, falling back to prefill page", "title", task.Title, "error", err)
	}

	url, err := format.GoogleCalendarURL(task)
	if err != nil {
		return nil, err
	}
	return s.openPage(models.DestinationGoogle, ActionFallbackURL, url), nil
}

// openPage opens a prefill URL in the browser. When the browser cannot be
// opened the URL is printed instead, so the user is never left with no
// action taken.
func (s *Syncer) openPage(dest models.Destination, action Action, url string) *Result {
	if s.dryRun {
		s.logger.Info("[DRY RUN] Would open calendar page", "url", url)
		return &Result{Destination: dest, Action: action, Detail: url}
	}
	if err := s.openURL(url); err != nil {
		s.logger.Warn("Could not open browser", "error", err)
		fmt.Printf("Open this URL in your browser to add the event:\n%s\n", url)
	}
	return &Result{Destination: dest, Action: action, Detail: url}
}
