// Package gmail exports email messages from the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/exporters/google"
	"github.com/custodia-labs/scribe/internal/logger"
)

var _ driven.Exporter = (*Exporter)(nil)

const (
	// pageSize is the Gmail list page size.
	pageSize = 100

	// recordBuffer bounds how far the exporter runs ahead of the consumer.
	recordBuffer = 50
)

// Config configures the Gmail exporter.
type Config struct {
	// Token is the OAuth2 access token for the Gmail account.
	Token string

	// Labels restricts the export to messages carrying at least one of
	// these label IDs. Empty means all labels.
	Labels []string

	// IncludeSpamTrash includes SPAM and TRASH messages when true.
	IncludeSpamTrash bool
}

// Exporter streams Gmail messages as raw email records.
type Exporter struct {
	cfg     Config
	limiter *rate.Limiter

	mu  sync.Mutex
	svc *gmailapi.Service
}

// New creates a Gmail exporter. The API client is built lazily on first use.
func New(cfg Config) *Exporter {
	return &Exporter{
		cfg:     cfg,
		limiter: google.NewRateLimiter(google.ServiceGmail),
	}
}

// Type returns the exporter type identifier.
func (e *Exporter) Type() string { return "gmail" }

// Collection returns the collection this exporter feeds.
func (e *Exporter) Collection() domain.Collection { return domain.CollectionEmail }

// Validate checks credentials with a profile lookup.
func (e *Exporter) Validate(ctx context.Context) error {
	svc, err := e.service(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return google.WrapError(err)
	}
	return nil
}

// Export lists message IDs page by page and fetches each message body.
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

// Close releases resources. The Gmail service holds no connections to close.
func (e *Exporter) Close() error { return nil }

func (e *Exporter) service(ctx context.Context) (*gmailapi.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.svc != nil {
		return e.svc, nil
	}
	if e.cfg.Token == "" {
		return nil, fmt.Errorf("%w: gmail token not configured", domain.ErrAuthRequired)
	}
	svc, err := google.NewGmailService(ctx, google.TokenSource(e.cfg.Token))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	e.svc = svc
	return svc, nil
}

func (e *Exporter) export(ctx context.Context, filter driven.ExportFilter, records chan<- domain.RawRecord) error {
	svc, err := e.service(ctx)
	if err != nil {
		return err
	}

	query := buildQuery(filter)
	logger.Debug("Gmail export query: %q", query)

	pageToken := ""
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		call := svc.Users.Messages.List("me").MaxResults(pageSize).Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		if e.cfg.IncludeSpamTrash {
			call = call.IncludeSpamTrash(true)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return google.WrapError(err)
		}

		for _, ref := range resp.Messages {
			msg, err := e.fetchMessage(ctx, svc, ref.Id)
			if err != nil {
				return err
			}
			if msg == nil || !e.wantMessage(msg) {
				continue
			}
			select {
			case records <- messageToRecord(msg):
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

func (e *Exporter) fetchMessage(ctx context.Context, svc *gmailapi.Service, id string) (*gmailapi.Message, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	msg, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, google.WrapError(err)
	}
	return msg, nil
}

func (e *Exporter) wantMessage(msg *gmailapi.Message) bool {
	if len(e.cfg.Labels) == 0 {
		return true
	}
	for _, want := range e.cfg.Labels {
		for _, have := range msg.LabelIds {
			if want == have {
				return true
			}
		}
	}
	return false
}

// buildQuery translates the export window into a Gmail search query.
// Gmail's after:/before: operators take Unix timestamps.
func buildQuery(filter driven.ExportFilter) string {
	var parts []string
	if filter.Query != "" {
		parts = append(parts, filter.Query)
	}
	if !filter.Since.IsZero() {
		parts = append(parts, fmt.Sprintf("after:%d", filter.Since.Unix()))
	}
	if !filter.Until.IsZero() {
		parts = append(parts, fmt.Sprintf("before:%d", filter.Until.Unix()))
	}
	return strings.Join(parts, " ")
}

// messageToRecord converts a Gmail message into a raw email record.
func messageToRecord(msg *gmailapi.Message) domain.RawRecord {
	headers := headerMap(msg)

	return domain.RawRecord{
		ID:         msg.Id,
		Collection: domain.CollectionEmail,
		Text:       messageText(msg),
		Timestamp:  time.UnixMilli(msg.InternalDate).UTC(),
		Author:     headers["from"],
		Fields: map[string]any{
			"thread_id": msg.ThreadId,
			"subject":   headers["subject"],
			"to":        headers["to"],
			"cc":        headers["cc"],
			"labels":    msg.LabelIds,
			"snippet":   msg.Snippet,
		},
	}
}

func headerMap(msg *gmailapi.Message) map[string]string {
	out := make(map[string]string)
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		out[strings.ToLower(h.Name)] = h.Value
	}
	return out
}

// messageText extracts the plain-text body, falling back to the snippet.
func messageText(msg *gmailapi.Message) string {
	if msg.Payload != nil {
		if text := partText(msg.Payload); text != "" {
			return text
		}
	}
	return msg.Snippet
}

// partText walks a MIME part tree depth-first for the first text/plain body.
func partText(part *gmailapi.MessagePart) string {
	if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if text := partText(child); text != "" {
			return text
		}
	}
	return ""
}
