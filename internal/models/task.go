package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task represents a single to-do entry with a date and an optional time.
// Time is a 24-hour "HH:MM" string; an empty Time marks the task as all-day.
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // HH:MM, "" for all-day
	CreatedAt int64  `json:"createdAt"`
}

// ValidationError reports a malformed task. Tasks are validated before any
// formatter or client sees them, so the formatting layer can assume the
// invariants hold.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task: %s %s", e.Field, e.Reason)
}

// New builds a validated task, assigning its identifier and creation
// timestamp. ID and CreatedAt never change afterwards.
func New(title, date, clock string) (Task, error) {
	t := Task{
		ID:        uuid.NewString(),
		Title:     title,
		Date:      date,
		Time:      clock,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the task invariants: a non-empty title, a valid calendar
// date and, when present, a valid 24-hour clock time.
func (t Task) Validate() error {
	if t.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if _, err := time.ParseInLocation("2006-01-02", t.Date, time.Local); err != nil {
		return &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if t.Time != "" {
		if _, err := time.Parse("15:04", t.Time); err != nil {
			return &ValidationError{Field: "time", Reason: "must be HH:MM"}
		}
	}
	return nil
}

// AllDay reports whether the task has no clock time.
func (t Task) AllDay() bool {
	return t.Time == ""
}

// Start returns the task's start instant in local time. All-day tasks start
// at midnight on their date.
func (t Task) Start() (time.Time, error) {
	if t.AllDay() {
		return time.ParseInLocation("2006-01-02", t.Date, time.Local)
	}
	return time.ParseInLocation("2006-01-02 15:04", t.Date+" "+t.Time, time.Local)
}
