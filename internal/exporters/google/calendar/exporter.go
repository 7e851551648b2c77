// Package calendar exports events from the Google Calendar API.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/exporters/google"
	"github.com/custodia-labs/scribe/internal/logger"
)

var _ driven.Exporter = (*Exporter)(nil)

const (
	pageSize     = 250
	recordBuffer = 50
)

// Config configures the Calendar exporter.
type Config struct {
	// Token is the OAuth2 access token for the calendar account.
	Token string

	// CalendarID selects which calendar to export. Defaults to "primary".
	CalendarID string
}

// Exporter streams calendar events as raw records.
type Exporter struct {
	cfg     Config
	limiter *rate.Limiter

	mu  sync.Mutex
	svc *calendarapi.Service
}

// New creates a Calendar exporter. The API client is built lazily.
func New(cfg Config) *Exporter {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	return &Exporter{
		cfg:     cfg,
		limiter: google.NewRateLimiter(google.ServiceCalendar),
	}
}

// Type returns the exporter type identifier.
func (e *Exporter) Type() string { return "calendar" }

// Collection returns the collection this exporter feeds.
func (e *Exporter) Collection() domain.Collection { return domain.CollectionCalendar }

// Validate checks credentials by fetching the calendar metadata.
func (e *Exporter) Validate(ctx context.Context) error {
	svc, err := e.service(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.Calendars.Get(e.cfg.CalendarID).Context(ctx).Do(); err != nil {
		return google.WrapError(err)
	}
	return nil
}

// Export lists events updated within the filter window.
func (e *Exporter) Export(ctx context.Context, filter driven.ExportFilter) (<-chan domain.RawRecord, <-chan error) {
	records := make(chan domain.RawRecord, recordBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)
		if err := e.export(ctx, filter, records); err != nil {
			errs <- err
		}
	}()

	return records, errs
}

// Close releases resources.
func (e *Exporter) Close() error { return nil }

func (e *Exporter) service(ctx context.Context) (*calendarapi.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.svc != nil {
		return e.svc, nil
	}
	if e.cfg.Token == "" {
		return nil, fmt.Errorf("%w: calendar token not configured", domain.ErrAuthRequired)
	}
	svc, err := google.NewCalendarService(ctx, google.TokenSource(e.cfg.Token))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	e.svc = svc
	return svc, nil
}

func (e *Exporter) export(ctx context.Context, filter driven.ExportFilter, records chan<- domain.RawRecord) error {
	svc, err := e.service(ctx)
	if err != nil {
		return err
	}

	logger.Debug("Calendar export for %s since %s", e.cfg.CalendarID, filter.Since.Format(time.RFC3339))

	pageToken := ""
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		call := svc.Events.List(e.cfg.CalendarID).MaxResults(pageSize).ShowDeleted(false).Context(ctx)
		if !filter.Since.IsZero() {
			call = call.UpdatedMin(filter.Since.Format(time.RFC3339))
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return google.WrapError(err)
		}

		for _, event := range resp.Items {
			rec := eventToRecord(event)
			// UpdatedMin has no upper-bound counterpart; enforce Until here.
			if !filter.Until.IsZero() && rec.Timestamp.After(filter.Until) {
				continue
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return nil
		}
	}
}

// eventToRecord converts a calendar event into a raw record. The text
// joins summary and description so both are searchable.
func eventToRecord(event *calendarapi.Event) domain.RawRecord {
	var organiser string
	if event.Organizer != nil {
		organiser = event.Organizer.Email
	}

	var attendees []string
	for _, a := range event.Attendees {
		if a.Email != "" {
			attendees = append(attendees, a.Email)
		}
	}

	var text strings.Builder
	text.WriteString(event.Summary)
	if event.Description != "" {
		text.WriteString("\n\n")
		text.WriteString(event.Description)
	}

	return domain.RawRecord{
		ID:         event.Id,
		Collection: domain.CollectionCalendar,
		Text:       text.String(),
		Timestamp:  eventTimestamp(event),
		Author:     organiser,
		Fields: map[string]any{
			"summary":   event.Summary,
			"location":  event.Location,
			"status":    event.Status,
			"start":     eventTime(event.Start),
			"end":       eventTime(event.End),
			"attendees": attendees,
			"html_link": event.HtmlLink,
		},
	}
}

// eventTimestamp prefers the update time, falling back to the start time
// for events that never changed after creation.
func eventTimestamp(event *calendarapi.Event) time.Time {
	if ts, err := time.Parse(time.RFC3339, event.Updated); err == nil {
		return ts.UTC()
	}
	if start := eventTime(event.Start); start != "" {
		if ts, err := time.Parse(time.RFC3339, start); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// eventTime renders an event boundary, which is either a timed DateTime
// or an all-day Date.
func eventTime(edt *calendarapi.EventDateTime) string {
	if edt == nil {
		return ""
	}
	if edt.DateTime != "" {
		return edt.DateTime
	}
	return edt.Date
}
