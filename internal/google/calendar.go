// Package google creates events in the user's primary Google Calendar
// through the Calendar API, authenticated with a bearer access token
// obtained by the auth package.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"simplesync/internal/format"
	"simplesync/internal/models"
)

const (
	primaryCalendarID = "primary"

	localDate     = "2006-01-02"
	localDateTime = "2006-01-02T15:04:05"
)

// IntegrationError reports a non-success response from the event-creation
// endpoint.
type IntegrationError struct {
	StatusCode int
	Body       string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("google calendar API error: %d %s", e.StatusCode, e.Body)
}

// Client talks to the Google Calendar API on behalf of one access token.
type Client struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewClient builds a Calendar API client from a bearer access token.
// Additional options are accepted so tests can point the client at a fake
// endpoint.
func NewClient(ctx context.Context, logger *slog.Logger, accessToken string, opts ...option.ClientOption) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	service, err := calendar.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{service: service, logger: logger}, nil
}

// CreateEvent inserts the task as an event in the user's primary calendar.
// A non-2xx response surfaces as an *IntegrationError.
func (c *Client) CreateEvent(ctx context.Context, task models.Task) (*calendar.Event, error) {
	body, err := eventBody(task)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Creating Google Calendar event", "title", task.Title, "allDay", task.AllDay())
	created, err := c.service.Events.Insert(primaryCalendarID, body).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &IntegrationError{StatusCode: gerr.Code, Body: gerr.Body}
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	c.logger.Info("Created Google Calendar event", "title", task.Title, "eventID", created.Id)
	return created, nil
}

// eventBody builds the provider event representation. Timed tasks use
// local date-time strings without an offset, interpreted in the account's
// default timezone; all-day tasks use date-only start/end with the
// provider's exclusive next-day end convention.
func eventBody(task models.Task) (*calendar.Event, error) {
	start, end, err := format.EventWindow(task)
	if err != nil {
		return nil, err
	}

	ev := &calendar.Event{
		Summary:     task.Title,
		Description: format.EventDescription,
	}
	if task.AllDay() {
		ev.Start = &calendar.EventDateTime{Date: start.Format(localDate)}
		ev.End = &calendar.EventDateTime{Date: start.AddDate(0, 0, 1).Format(localDate)}
		return ev, nil
	}
	ev.Start = &calendar.EventDateTime{DateTime: start.Format(localDateTime)}
	ev.End = &calendar.EventDateTime{DateTime: end.Format(localDateTime)}
	return ev, nil
}
