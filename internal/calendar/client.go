// Package calendar talks to the external tour calendar over its REST API.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leasingbot_backend/platform/apperr"
	"leasingbot_backend/platform/config"
	"leasingbot_backend/platform/logger"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// Event is a tour slot to create on the calendar.
type Event struct {
	Title         string
	AttendeeName  string
	AttendeePhone string
	StartTime     time.Time
	Duration      time.Duration
}

type createEventRequest struct {
	Title           string `json:"title"`
	AttendeeName    string `json:"attendeeName"`
	AttendeePhone   string `json:"attendeePhone"`
	StartTime       string `json:"startTime"`
	DurationMinutes int    `json:"durationMinutes"`
}

type createEventResponse struct {
	EventID string `json:"eventId"`
}

func NewClient(cfg config.CalendarConfig, log *logger.Logger) *Client {
	if cfg.GetCalendarURL() == "" {
		return nil
	}

	timeout := cfg.GetCalendarTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetCalendarURL(), "/"),
		token:   cfg.GetCalendarToken(),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// CreateEvent books the slot and returns the calendar's event ID.
func (c *Client) CreateEvent(ctx context.Context, event Event) (string, error) {
	if c == nil {
		return "", apperr.Unavailable("calendar is not configured")
	}

	payload := createEventRequest{
		Title:           event.Title,
		AttendeeName:    event.AttendeeName,
		AttendeePhone:   event.AttendeePhone,
		StartTime:       event.StartTime.UTC().Format(time.RFC3339),
		DurationMinutes: int(event.Duration.Minutes()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal calendar payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "calendar request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", apperr.Unavailable(fmt.Sprintf("calendar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var out createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode calendar response: %w", err)
	}
	if out.EventID == "" {
		return "", apperr.Unavailable("calendar returned no event id")
	}

	c.log.Debug("calendar event created", "event_id", out.EventID)
	return out.EventID, nil
}

// CancelEvent removes an event. A 404 counts as already canceled.
func (c *Client) CancelEvent(ctx context.Context, externalEventID string) error {
	if c == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/events/"+externalEventID, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "calendar request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return apperr.Unavailable(fmt.Sprintf("calendar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
