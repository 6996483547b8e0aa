// Package caldav pushes formatted task events straight into an iCloud
// calendar over CalDAV, as an optional extra on top of the .ics download.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"simplesync/internal/format"
	"simplesync/internal/models"
)

const icloudEndpoint = "https://caldav.icloud.com/"

// basicAuthTransport adds Basic Auth and a User-Agent to every request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "simplesync/1.0")
	return t.Transport.RoundTrip(req)
}

// Client uploads single events to one named iCloud calendar.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarURL  string
}

// NewClient discovers the named calendar on the user's iCloud account and
// returns a client bound to it. The password must be an app-specific
// password.
func NewClient(ctx context.Context, logger *slog.Logger, username, password, calendarName string) (*Client, error) {
	httpClient := &http.Client{Transport: &basicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}}

	caldavClient, err := caldav.NewClient(httpClient, icloudEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, icloudEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
	}

	logger.Info("Finding iCloud calendar", "calendarName", calendarName)
	calendarURL, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarURL = calendarURL
	logger.Info("Found iCloud calendar", "url", calendarURL)

	return c, nil
}

// PutTask writes the task's VEVENT into the calendar. The event resource is
// named after the task id, so re-syncing the same task overwrites rather
// than duplicates.
func (c *Client) PutTask(ctx context.Context, task models.Task, now time.Time) error {
	cal, err := format.Calendar(task, now)
	if err != nil {
		return err
	}

	eventPath := path.Join(
		strings.TrimPrefix(c.calendarURL, icloudEndpoint),
		fmt.Sprintf("%s.ics", task.ID),
	)

	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	defer writer.Close()

	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}

	c.logger.Info("Pushed task to iCloud calendar", "title", task.Title)
	return nil
}

// findCalendar walks from the current user principal through the calendar
// home set and returns the URL of the calendar with the matching display
// name.
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
		if cal.Name == name {
			return fmt.Sprintf("%s%s", strings.TrimSuffix(icloudEndpoint, "/"), cal.Path), nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
