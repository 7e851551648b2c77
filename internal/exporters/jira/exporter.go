// Package jira exports issues from a Jira instance via its REST API.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	jiraapi "github.com/andygrunwald/go-jira"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/logger"
)

var _ driven.Exporter = (*Exporter)(nil)

const (
	pageSize     = 50
	recordBuffer = 50

	// jqlTimeLayout is the minute-precision format JQL accepts.
	jqlTimeLayout = "2006-01-02 15:04"
)

// issueFields is the field set requested from the search endpoint.
var issueFields = []string{
	"summary", "description", "status", "assignee", "reporter",
	"created", "updated", "labels", "issuetype", "project", "priority",
}

// Config configures the Jira exporter.
type Config struct {
	// BaseURL is the Jira instance URL, e.g. https://acme.atlassian.net.
	BaseURL string

	// Email and APIToken authenticate against Jira Cloud.
	Email    string
	APIToken string

	// Project restricts the export to one project key. Empty means all
	// projects visible to the account.
	Project string
}

// Exporter streams Jira issues as raw tracker records.
type Exporter struct {
	cfg    Config
	client *jiraapi.Client
}

// New creates a Jira exporter.
func New(cfg Config) (*Exporter, error) {
	e := &Exporter{cfg: cfg}
	if cfg.BaseURL == "" {
		return e, nil
	}
	tp := jiraapi.BasicAuthTransport{Username: cfg.Email, Password: cfg.APIToken}
	client, err := jiraapi.NewClient(tp.Client(), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	e.client = client
	return e, nil
}

// Type returns the exporter type identifier.
func (e *Exporter) Type() string { return "jira" }

// Collection returns the collection this exporter feeds.
func (e *Exporter) Collection() domain.Collection { return domain.CollectionIssues }

// Validate checks credentials by fetching the authenticated user.
func (e *Exporter) Validate(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("%w: jira base URL not configured", domain.ErrAuthRequired)
	}
	_, resp, err := e.client.User.GetSelfWithContext(ctx)
	if err != nil {
		return wrapError(err, resp)
	}
	return nil
}

// Export pages through a JQL search bounded by the filter window.
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
		return fmt.Errorf("%w: jira base URL not configured", domain.ErrAuthRequired)
	}

	jql := buildJQL(e.cfg.Project, filter)
	logger.Debug("Jira export JQL: %q", jql)

	opts := &jiraapi.SearchOptions{MaxResults: pageSize, Fields: issueFields}
	for {
		issues, resp, err := e.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return wrapError(err, resp)
		}
		if len(issues) == 0 {
			return nil
		}

		for i := range issues {
			select {
			case records <- issueToRecord(&issues[i]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		opts.StartAt += len(issues)
		if opts.StartAt >= resp.Total {
			return nil
		}
	}
}

// buildJQL assembles the search clause. Updated-time bounds keep
// incremental runs cheap; ordering makes pagination stable.
func buildJQL(project string, filter driven.ExportFilter) string {
	var clauses []string
	if project != "" {
		clauses = append(clauses, fmt.Sprintf("project = %q", project))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("updated >= %q", filter.Since.UTC().Format(jqlTimeLayout)))
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, fmt.Sprintf("updated <= %q", filter.Until.UTC().Format(jqlTimeLayout)))
	}
	if filter.Query != "" {
		clauses = append(clauses, fmt.Sprintf("text ~ %q", filter.Query))
	}
	return strings.Join(clauses, " AND ") + " ORDER BY updated ASC"
}

// issueToRecord converts a Jira issue. The assignee is the record
// author; unassigned issues fall back to the reporter.
func issueToRecord(issue *jiraapi.Issue) domain.RawRecord {
	f := issue.Fields
	if f == nil {
		f = &jiraapi.IssueFields{}
	}

	author := ""
	if f.Assignee != nil {
		author = f.Assignee.EmailAddress
	}
	if author == "" && f.Reporter != nil {
		author = f.Reporter.EmailAddress
	}

	status := ""
	if f.Status != nil {
		status = f.Status.Name
	}
	priority := ""
	if f.Priority != nil {
		priority = f.Priority.Name
	}

	var text strings.Builder
	text.WriteString(f.Summary)
	if f.Description != "" {
		text.WriteString("\n\n")
		text.WriteString(f.Description)
	}

	return domain.RawRecord{
		ID:         issue.Key,
		Collection: domain.CollectionIssues,
		Text:       text.String(),
		Timestamp:  time.Time(f.Updated).UTC(),
		Author:     author,
		Fields: map[string]any{
			"summary":    f.Summary,
			"status":     status,
			"issue_type": f.Type.Name,
			"project":    f.Project.Key,
			"priority":   priority,
			"labels":     f.Labels,
			"created":    time.Time(f.Created).UTC().Format(time.RFC3339),
		},
	}
}

// wrapError maps Jira REST errors onto the domain error taxonomy.
func wrapError(err error, resp *jiraapi.Response) error {
	if resp == nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: jira returned %d", domain.ErrAuthInvalid, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: jira returned 429", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: jira returned %d", domain.ErrVendorUnavailable, resp.StatusCode)
	default:
		return err
	}
}
