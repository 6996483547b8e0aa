// Package nlp extracts structured event fields from free text using the
// Gemini API. The response is a strict JSON object; anything the service
// cannot parse is fatal to that attempt.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"simplesync/internal/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"

	systemInstruction = `You are a smart scheduling assistant. Your job is to extract calendar event details from natural language text.
You must return a strict JSON object.

Rules:
1. 'start' and 'end' must be in ISO 8601 format (e.g., 2023-10-27T14:30:00).
2. If the user provides a relative date (e.g., "tomorrow", "next Friday"), calculate the date based on the 'referenceTime' provided in the user prompt.
3. If no duration is specified, assume 1 hour.
4. If no time is specified (only a date), set 'allDay' to true, and set start/end to the date string YYYY-MM-DD.
5. If 'allDay' is true, start and end should just be the YYYY-MM-DD string.
6. 'summary' is the main title of the task.`
)

// ParsedEvent is the structured result of a free-text parse. Start and End
// are full date-times unless AllDay is set, in which case they are bare
// dates.
type ParsedEvent struct {
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	AllDay      bool   `json:"allDay"`
}

// TaskFields converts the parsed event into task date/time fields. All-day
// events get an empty clock time.
func (p *ParsedEvent) TaskFields() (title, date, clock string, err error) {
	if p.Summary == "" {
		return "", "", "", fmt.Errorf("parsed event has no summary")
	}
	if p.AllDay {
		if _, err := time.Parse("2006-01-02", p.Start); err != nil {
			return "", "", "", fmt.Errorf("parsed all-day start %q is not a date: %w", p.Start, err)
		}
		return p.Summary, p.Start, "", nil
	}
	start, err := time.Parse("2006-01-02T15:04:05", p.Start)
	if err != nil {
		return "", "", "", fmt.Errorf("parsed start %q is not a date-time: %w", p.Start, err)
	}
	return p.Summary, start.Format("2006-01-02"), start.Format("15:04"), nil
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	baseURL    string
	model      string
}

// NewClient builds a Gemini client. The API key is required.
func NewClient(logger *slog.Logger, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is missing")
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// ParseTask sends the free text together with a reference time and decodes
// the structured event the model returns.
func (c *Client) ParseTask(ctx context.Context, text string, reference time.Time) (*ParsedEvent, error) {
	prompt := fmt.Sprintf("User Text: %q\nCurrent Reference Time: %s", text, reference.Format(time.RFC3339))
	reqBody := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig:  generationConfig{ResponseMIMEType: "application/json"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	c.logger.Debug("Parsing task text with Gemini", "model", c.model)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var parsed ParsedEvent
	if err := json.Unmarshal([]byte(gr.Candidates[0].Content.Parts[0].Text), &parsed); err != nil {
		return nil, fmt.Errorf("gemini candidate is not a valid event object: %w", err)
	}
	if parsed.Summary == "" || parsed.Start == "" {
		return nil, fmt.Errorf("gemini candidate is missing summary or start")
	}
	return &parsed, nil
}

// NewTask runs a parse and materializes the result as a task.
func (c *Client) NewTask(ctx context.Context, text string, reference time.Time) (models.Task, error) {
	parsed, err := c.ParseTask(ctx, text, reference)
	if err != nil {
		return models.Task{}, err
	}
	title, date, clock, err := parsed.TaskFields()
	if err != nil {
		return models.Task{}, err
	}
	return models.New(title, date, clock)
}
