// Package slack exports chat messages from the Slack Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/logger"
)

var _ driven.Exporter = (*Exporter)(nil)

const (
	pageSize     = 200
	recordBuffer = 50
)

// api is the subset of the Slack client the exporter uses, split out so
// tests can stub it.
type api interface {
	AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error)
	GetConversationsContext(ctx context.Context, params *slackapi.GetConversationsParameters) ([]slackapi.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slackapi.GetConversationHistoryParameters) (*slackapi.GetConversationHistoryResponse, error)
}

// Config configures the Slack exporter.
type Config struct {
	// Token is a bot or user token with channels:history scope.
	Token string

	// Channels restricts the export to these channel IDs. Empty means
	// every public channel the token can see.
	Channels []string
}

// Exporter streams Slack channel messages as raw chat records.
type Exporter struct {
	cfg    Config
	client api
}

// New creates a Slack exporter.
func New(cfg Config) *Exporter {
	e := &Exporter{cfg: cfg}
	if cfg.Token != "" {
		e.client = slackapi.New(cfg.Token)
	}
	return e
}

// Type returns the exporter type identifier.
func (e *Exporter) Type() string { return "slack" }

// Collection returns the collection this exporter feeds.
func (e *Exporter) Collection() domain.Collection { return domain.CollectionChat }

// Validate checks the token with auth.test.
func (e *Exporter) Validate(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("%w: slack token not configured", domain.ErrAuthRequired)
	}
	if _, err := e.client.AuthTestContext(ctx); err != nil {
		return wrapError(err)
	}
	return nil
}

// Export walks channels and their message history within the window.
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

func (e *Exporter) export(ctx context.Context, filter driven.ExportFilter, records chan<- domain.RawRecord) error {
	if e.client == nil {
		return fmt.Errorf("%w: slack token not configured", domain.ErrAuthRequired)
	}

	channels := e.cfg.Channels
	if len(channels) == 0 {
		var err error
		channels, err = e.listChannels(ctx)
		if err != nil {
			return err
		}
	}
	logger.Debug("Slack export over %d channels", len(channels))

	for _, channel := range channels {
		if err := e.exportChannel(ctx, channel, filter, records); err != nil {
			return fmt.Errorf("channel %s: %w", channel, err)
		}
	}
	return nil
}

func (e *Exporter) listChannels(ctx context.Context) ([]string, error) {
	var ids []string
	cursor := ""
	for {
		channels, next, err := e.client.GetConversationsContext(ctx, &slackapi.GetConversationsParameters{
			Types:           []string{"public_channel"},
			ExcludeArchived: true,
			Limit:           pageSize,
			Cursor:          cursor,
		})
		if err != nil {
			return nil, wrapError(err)
		}
		for _, c := range channels {
			ids = append(ids, c.ID)
		}
		if next == "" {
			return ids, nil
		}
		cursor = next
	}
}

func (e *Exporter) exportChannel(ctx context.Context, channelID string, filter driven.ExportFilter, records chan<- domain.RawRecord) error {
	params := &slackapi.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     pageSize,
	}
	if !filter.Since.IsZero() {
		params.Oldest = slackTimestamp(filter.Since)
	}
	if !filter.Until.IsZero() {
		params.Latest = slackTimestamp(filter.Until)
	}

	for {
		resp, err := e.client.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return wrapError(err)
		}

		for _, msg := range resp.Messages {
			rec, ok := messageToRecord(channelID, msg)
			if !ok {
				continue
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			return nil
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}
}

// messageToRecord converts a Slack message. Non-user noise (joins,
// topic changes) is dropped; the bool reports whether to keep it.
func messageToRecord(channelID string, msg slackapi.Message) (domain.RawRecord, bool) {
	if msg.SubType != "" && msg.SubType != "thread_broadcast" && msg.SubType != "bot_message" {
		return domain.RawRecord{}, false
	}
	if msg.Timestamp == "" {
		return domain.RawRecord{}, false
	}

	author := msg.User
	if author == "" {
		author = msg.Username
	}

	return domain.RawRecord{
		ID:         channelID + "-" + msg.Timestamp,
		Collection: domain.CollectionChat,
		Text:       msg.Text,
		Timestamp:  parseSlackTimestamp(msg.Timestamp),
		Author:     author,
		Fields: map[string]any{
			"channel":   channelID,
			"thread_ts": msg.ThreadTimestamp,
			"subtype":   msg.SubType,
		},
	}, true
}

// slackTimestamp renders a time as Slack's seconds.microseconds form.
func slackTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// parseSlackTimestamp parses "1712345678.000200" into a UTC time.
func parseSlackTimestamp(ts string) time.Time {
	secs, frac, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if frac != "" {
		if m, err := strconv.ParseInt(frac, 10, 64); err == nil {
			micros = m
		}
	}
	return time.Unix(sec, micros*1000).UTC()
}

// wrapError maps Slack API errors onto the domain error taxonomy.
func wrapError(err error) error {
	var rle *slackapi.RateLimitedError
	if errors.As(err, &rle) {
		return fmt.Errorf("%w: retry after %s", domain.ErrRateLimited, rle.RetryAfter)
	}
	switch err.Error() {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked":
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, err.Error())
	case "token_expired":
		return fmt.Errorf("%w: %s", domain.ErrAuthExpired, err.Error())
	}
	var sce slackapi.StatusCodeError
	if errors.As(err, &sce) && sce.Code >= 500 {
		return fmt.Errorf("%w: slack returned %d", domain.ErrVendorUnavailable, sce.Code)
	}
	return err
}
