package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"simplesync/internal/auth"
	"simplesync/internal/caldav"
	"simplesync/internal/config"
	"simplesync/internal/models"
	"simplesync/internal/nlp"
	"simplesync/internal/store"
	"simplesync/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "simplesync",
		Usage: "Minimal task list that exports entries to Google, Apple, Outlook or Yahoo calendars.",
		Commands: []*cli.Command{
			authCommand(),
			addCommand(),
			calendarCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in with Google and store a calendar credential.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reset", Usage: "Discard any stored credential before signing in."},
		},
		Action: func(c *cli.Context) error {
			cfg := config.FromEnv()
			logger := setupLogger(cfg.LogLevel)
			if cfg.GoogleClientID == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID environment variable not set")
			}

			authenticator := auth.NewAuthenticator(logger, cfg.GoogleClientID)
			if c.Bool("reset") {
				if err := authenticator.Reset(); err != nil {
					return err
				}
				logger.Info("Removed stored credential", "path", auth.TokenPath())
			}

			if _, err := authenticator.SignIn(c.Context); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}
			fmt.Printf("Authenticated successfully. Credential saved to %s\n", auth.TokenPath())
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Create a task and sync it to a calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Task title."},
			&cli.StringFlag{Name: "date", Usage: "Task date (YYYY-MM-DD)."},
			&cli.StringFlag{Name: "time", Usage: "Task time (HH:MM). Omit for an all-day task."},
			&cli.StringFlag{Name: "text", Usage: "Free text to parse into a task (requires GEMINI_API_KEY)."},
			&cli.StringFlag{Name: "to", Usage: "Destination calendar: google, apple, outlook or yahoo. Defaults to the stored preference."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would happen without writing files, opening pages or calling APIs."},
		},
		Action: func(c *cli.Context) error {
			cfg := config.FromEnv()
			logger := setupLogger(cfg.LogLevel)

			tasks := store.NewTaskList()
			task, err := buildTask(c, cfg, logger, tasks)
			if err != nil {
				return err
			}

			prefs := store.NewPreferences("")
			dest := prefs.Preferred()
			if c.String("to") != "" {
				dest, err = models.ParseDestination(c.String("to"))
				if err != nil {
					return err
				}
			}

			authenticator := auth.NewAuthenticator(logger, cfg.GoogleClientID)

			var uploader syncer.Uploader
			if cfg.CalDAVConfigured() && (dest == models.DestinationApple || dest == models.DestinationOutlook) {
				client, err := caldav.NewClient(c.Context, logger, cfg.ICloudUsername, cfg.ICloudPassword, cfg.ICloudCalendar)
				if err != nil {
					logger.Error("CalDAV setup failed, continuing with file download only", "error", err)
				} else {
					uploader = client
				}
			}

			s := syncer.New(logger, authenticator, cfg.OutputDir, uploader, c.Bool("dry-run"))
			result, err := s.Sync(c.Context, task, dest)
			if err != nil {
				return err
			}
			printResult(task, result)
			return nil
		},
	}
}

func calendarCommand() *cli.Command {
	return &cli.Command{
		Name:      "calendar",
		Usage:     "Show or set the preferred sync destination.",
		ArgsUsage: "[google|apple|outlook|yahoo]",
		Action: func(c *cli.Context) error {
			prefs := store.NewPreferences("")
			if c.Args().Len() == 0 {
				fmt.Printf("Preferred calendar: %s\n", prefs.Preferred())
				return nil
			}
			dest, err := models.ParseDestination(c.Args().First())
			if err != nil {
				return err
			}
			if err := prefs.SetPreferred(dest); err != nil {
				return err
			}
			fmt.Printf("Preferred calendar set to: %s\n", dest)
			return nil
		},
	}
}

// buildTask creates the session task either from the structured flags or by
// parsing free text.
func buildTask(c *cli.Context, cfg config.Config, logger *slog.Logger, tasks *store.TaskList) (models.Task, error) {
	if text := c.String("text"); text != "" {
		parser, err := nlp.NewClient(logger, cfg.GeminiAPIKey)
		if err != nil {
			return models.Task{}, err
		}
		parsed, err := parser.ParseTask(c.Context, text, time.Now())
		if err != nil {
			return models.Task{}, fmt.Errorf("could not parse task text: %w", err)
		}
		title, date, clock, err := parsed.TaskFields()
		if err != nil {
			return models.Task{}, err
		}
		return tasks.Add(title, date, clock)
	}
	return tasks.Add(c.String("title"), c.String("date"), c.String("time"))
}

func printResult(task models.Task, result *syncer.Result) {
	switch result.Action {
	case syncer.ActionCreated:
		fmt.Printf("Created %q in Google Calendar.\n", task.Title)
	case syncer.ActionDownloaded:
		fmt.Printf("Saved %q to %s\n", task.Title, result.Detail)
	case syncer.ActionOpenedURL:
		fmt.Printf("Opened %s calendar page for %q.\n", result.Destination, task.Title)
	case syncer.ActionFallbackURL:
		fmt.Printf("Direct sync failed; opened the prefilled Google Calendar page for %q instead.\n", task.Title)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
