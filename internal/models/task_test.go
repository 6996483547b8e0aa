package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsIdentityAndTimestamp(t *testing.T) {
	task, err := New("Dentist", "2025-03-10", "09:00")
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.NotZero(t, task.CreatedAt)
	assert.Equal(t, "Dentist", task.Title)
	assert.False(t, task.AllDay())

	other, err := New("Dentist", "2025-03-10", "09:00")
	require.NoError(t, err)
	assert.NotEqual(t, task.ID, other.ID)
}

func TestValidateRejectsMalformedTasks(t *testing.T) {
	tests := []struct {
		name  string
		title string
		date  string
		clock string
	}{
		{"empty title", "", "2025-03-10", "09:00"},
		{"bad date", "Dentist", "03/10/2025", "09:00"},
		{"impossible date", "Dentist", "2025-02-30", ""},
		{"bad time", "Dentist", "2025-03-10", "9am"},
		{"out of range time", "Dentist", "2025-03-10", "25:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.title, tt.date, tt.clock)
			require.Error(t, err)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "expected ValidationError, got %T", err)
		})
	}
}

func TestAllDayAndStart(t *testing.T) {
	allDay, err := New("Vacation", "2025-07-04", "")
	require.NoError(t, err)
	assert.True(t, allDay.AllDay())

	start, err := allDay.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 4, 0, 0, 0, 0, time.Local), start)

	timed, err := New("Dentist", "2025-03-10", "09:00")
	require.NoError(t, err)
	start, err = timed.Start()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local), start)
}

func TestParseDestination(t *testing.T) {
	d, err := ParseDestination("google")
	require.NoError(t, err)
	assert.Equal(t, DestinationGoogle, d)

	d, err = ParseDestination(" Outlook ")
	require.NoError(t, err)
	assert.Equal(t, DestinationOutlook, d)

	_, err = ParseDestination("caldav")
	assert.Error(t, err)
}
