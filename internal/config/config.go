package config

import "os"

// Config collects the environment-driven settings. A .env file in the
// working directory is honored via godotenv before this is read.
type Config struct {
	// GoogleClientID is the OAuth client id for the PKCE flow.
	GoogleClientID string
	// GeminiAPIKey enables free-text task parsing when set.
	GeminiAPIKey string
	// OutputDir receives the generated .ics files. Defaults to the working
	// directory.
	OutputDir string
	// LogLevel is debug, info, warn or error. Defaults to info.
	LogLevel string

	// Optional iCloud CalDAV push for the file-based destinations. All
	// three must be set for the push to activate; the password is an
	// app-specific password.
	ICloudUsername string
	ICloudPassword string
	ICloudCalendar string
}

// FromEnv reads the configuration from the environment.
func FromEnv() Config {
	cfg := Config{
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		OutputDir:      os.Getenv("OUTPUT_DIR"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		ICloudUsername: os.Getenv("ICLOUD_USERNAME"),
		ICloudPassword: os.Getenv("ICLOUD_APP_SPECIFIC_PASSWORD"),
		ICloudCalendar: os.Getenv("ICLOUD_CALENDAR_NAME"),
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}

// CalDAVConfigured reports whether the optional iCloud push is fully
// configured.
func (c Config) CalDAVConfigured() bool {
	return c.ICloudUsername != "" && c.ICloudPassword != "" && c.ICloudCalendar != ""
}
