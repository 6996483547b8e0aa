package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"simplesync/internal/models"
)

// Preferences is the single durable preference slot: the calendar
// destination tasks sync to by default. It is read at startup and written
// whenever the user changes it; concurrent writers are last-write-wins.
type Preferences struct {
	path string
}

type prefsFile struct {
	PreferredCalendar models.Destination `json:"preferredCalendar"`
}

// PrefsPath returns the XDG-compliant location of the preference file.
func PrefsPath() string {
	return filepath.Join(xdg.ConfigHome, "simplesync", "prefs.json")
}

// NewPreferences returns a preference slot backed by the given file path.
// An empty path uses the default XDG location.
func NewPreferences(path string) *Preferences {
	if path == "" {
		path = PrefsPath()
	}
	return &Preferences{path: path}
}

// Preferred returns the stored destination, or GOOGLE when nothing valid
// has been stored yet.
func (p *Preferences) Preferred() models.Destination {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return models.DestinationGoogle
	}
	var f prefsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return models.DestinationGoogle
	}
	if _, err := models.ParseDestination(string(f.PreferredCalendar)); err != nil {
		return models.DestinationGoogle
	}
	return f.PreferredCalendar
}

// SetPreferred overwrites the stored destination.
func (p *Preferences) SetPreferred(d models.Destination) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := json.MarshalIndent(prefsFile{PreferredCalendar: d}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
