// Package format converts tasks into the three external calendar
// representations: the Google and Yahoo prefill URLs and the downloadable
// iCalendar document. All conversions are pure; the ICS generation
// timestamp is passed in by the caller.
package format

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/emersion/go-ical"

	"simplesync/internal/models"
)

const (
	googleRenderURL = "https://calendar.google.com/calendar/render"
	yahooBaseURL    = "https://calendar.yahoo.com/"

	// Description attached to every exported event.
	EventDescription = "Created with SimpleSync"

	uidDomain = "simplesync.app"
	prodID    = "-//SimpleSync//Todo App//EN"

	compactDate     = "20060102"
	compactDateTime = "20060102T150405"
)

var whitespace = regexp.MustCompile(`\s+`)

// EventWindow returns the start and end instants of a task in local time.
// Timed tasks last exactly 60 minutes; the end rolls over midnight when the
// start is late enough. All-day tasks return start == end on the task's
// date.
func EventWindow(t models.Task) (start, end time.Time, err error) {
	start, err = t.Start()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to parse task date: %w", err)
	}
	if t.AllDay() {
		return start, start, nil
	}
	return start, start.Add(time.Hour), nil
}

// GoogleCalendarURL builds the prefilled event-creation URL for Google
// Calendar. Timed tasks use compact local date-times with seconds forced to
// zero; all-day tasks use a bare date for both ends of the range.
func GoogleCalendarURL(t models.Task) (string, error) {
	start, end, err := EventWindow(t)
	if err != nil {
		return "", err
	}

	var dates string
	if t.AllDay() {
		dates = start.Format(compactDate) + "/" + end.Format(compactDate)
	} else {
		dates = start.Format(compactDateTime) + "/" + end.Format(compactDateTime)
	}

	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", t.Title)
	params.Set("dates", dates)
	params.Set("details", EventDescription)
	return googleRenderURL + "?" + params.Encode(), nil
}

// YahooCalendarURL builds the prefilled event-creation URL for Yahoo
// Calendar. Yahoo takes only a start parameter; the duration is left to its
// defaults.
func YahooCalendarURL(t models.Task) (string, error) {
	start, _, err := EventWindow(t)
	if err != nil {
		return "", err
	}

	st := start.Format(compactDate)
	if !t.AllDay() {
		st = start.Format(compactDateTime)
	}

	params := url.Values{}
	params.Set("v", "60")
	params.Set("title", t.Title)
	params.Set("st", st)
	params.Set("desc", EventDescription)
	return yahooBaseURL + "?" + params.Encode(), nil
}

// Calendar builds the VCALENDAR envelope with the task's single VEVENT.
// Timed tasks use floating local date-times; all-day tasks use date-only
// DTSTART/DTEND. now supplies the DTSTAMP so output is reproducible.
func Calendar(t models.Task, now time.Time) (*ical.Calendar, error) {
	start, end, err := EventWindow(t)
	if err != nil {
		return nil, err
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", t.ID, uidDomain))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.Set(dateProp(ical.PropDateTimeStart, start, t.AllDay()))
	ve.Props.Set(dateProp(ical.PropDateTimeEnd, end, t.AllDay()))
	ve.Props.SetText(ical.PropSummary, t.Title)
	ve.Props.SetText(ical.PropDescription, EventDescription)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Children = append(cal.Children, ve)
	return cal, nil
}

// ICSDocument renders the task as a downloadable iCalendar file and
// suggests a file name derived from the title.
func ICSDocument(t models.Task, now time.Time) (filename string, data []byte, err error) {
	cal, err := Calendar(t, now)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", nil, fmt.Errorf("failed to encode event to iCal format: %w", err)
	}

	return whitespace.ReplaceAllString(t.Title, "_") + ".ics", buf.Bytes(), nil
}

// dateProp builds a DTSTART/DTEND property: date-only with VALUE=DATE for
// all-day events, floating local date-time otherwise.
func dateProp(name string, v time.Time, allDay bool) *ical.Prop {
	p := ical.NewProp(name)
	if allDay {
		p.SetValueType(ical.ValueDate)
		p.Value = v.Format(compactDate)
		return p
	}
	p.Value = v.Format(compactDateTime)
	return p
}
