// Package github exports pull requests from the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
	"github.com/custodia-labs/scribe/internal/logger"
)

var _ driven.Exporter = (*Exporter)(nil)

const (
	pageSize       = 100
	recordBuffer   = 50
	requestTimeout = 30 * time.Second
)

// Config configures the GitHub exporter.
type Config struct {
	// Token is a personal access token or OAuth access token.
	Token string

	// Owner is the user or organisation owning the repositories.
	Owner string

	// Repos lists the repositories to export pull requests from.
	Repos []string

	// SkipComments disables fetching review comments per pull request.
	// Cuts API usage roughly in half on large repositories.
	SkipComments bool
}

// Exporter streams pull requests, with their discussion, as raw records.
type Exporter struct {
	cfg     Config
	limiter *limiter

	mu sync.Mutex
	gh *gh.Client
}

// New creates a GitHub exporter. The API client is built lazily so the
// token is only touched when a call is made.
func New(cfg Config) *Exporter {
	return &Exporter{cfg: cfg, limiter: newLimiter()}
}

// Type returns the exporter type identifier.
func (e *Exporter) Type() string { return "github" }

// Collection returns the collection this exporter feeds.
func (e *Exporter) Collection() domain.Collection { return domain.CollectionPullRequests }

// Validate checks the token by fetching the authenticated user.
func (e *Exporter) Validate(ctx context.Context) error {
	client, err := e.client(ctx)
	if err != nil {
		return err
	}
	if len(e.cfg.Repos) == 0 || e.cfg.Owner == "" {
		return fmt.Errorf("%w: github owner and repos must be configured", domain.ErrInvalidInput)
	}
	if err := e.limiter.wait(ctx); err != nil {
		return err
	}
	_, resp, err := client.Users.Get(ctx, "")
	e.track(resp)
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// Export walks each configured repository's pull requests, most
// recently updated first, and stops per repo once the window is passed.
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

func (e *Exporter) client(ctx context.Context) (*gh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gh != nil {
		return e.gh, nil
	}
	if e.cfg.Token == "" {
		return nil, fmt.Errorf("%w: github token not configured", domain.ErrAuthRequired)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: e.cfg.Token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = requestTimeout
	e.gh = gh.NewClient(tc)
	return e.gh, nil
}

func (e *Exporter) export(ctx context.Context, filter driven.ExportFilter, records chan<- domain.RawRecord) error {
	client, err := e.client(ctx)
	if err != nil {
		return err
	}

	for _, repo := range e.cfg.Repos {
		if err := e.exportRepo(ctx, client, repo, filter, records); err != nil {
			return fmt.Errorf("repo %s/%s: %w", e.cfg.Owner, repo, err)
		}
	}
	return nil
}

func (e *Exporter) exportRepo(ctx context.Context, client *gh.Client, repo string, filter driven.ExportFilter, records chan<- domain.RawRecord) error {
	logger.Debug("GitHub export %s/%s since %s", e.cfg.Owner, repo, filter.Since.Format(time.RFC3339))

	opts := &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: pageSize},
	}

	for {
		if err := e.limiter.wait(ctx); err != nil {
			return err
		}
		prs, resp, err := client.PullRequests.List(ctx, e.cfg.Owner, repo, opts)
		e.track(resp)
		if err != nil {
			return wrapError(err)
		}

		for _, pr := range prs {
			updated := pr.GetUpdatedAt().Time
			// Descending by update time, so the first PR before the
			// window ends this repo.
			if !filter.Since.IsZero() && updated.Before(filter.Since) {
				return nil
			}
			if !filter.Until.IsZero() && updated.After(filter.Until) {
				continue
			}

			var comments []string
			if !e.cfg.SkipComments {
				comments = e.fetchComments(ctx, client, repo, pr.GetNumber())
			}

			select {
			case records <- prToRecord(e.cfg.Owner, repo, pr, comments):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// fetchComments collects issue comments for one pull request. Failures
// degrade to a PR without discussion rather than failing the export.
func (e *Exporter) fetchComments(ctx context.Context, client *gh.Client, repo string, number int) []string {
	if err := e.limiter.wait(ctx); err != nil {
		return nil
	}
	comments, resp, err := client.Issues.ListComments(ctx, e.cfg.Owner, repo, number,
		&gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: pageSize}})
	e.track(resp)
	if err != nil {
		logger.Warn("Failed to fetch comments for %s#%d: %v", repo, number, err)
		return nil
	}

	var out []string
	for _, c := range comments {
		if body := c.GetBody(); body != "" {
			out = append(out, fmt.Sprintf("%s: %s", c.GetUser().GetLogin(), body))
		}
	}
	return out
}

func (e *Exporter) track(resp *gh.Response) {
	if resp != nil {
		e.limiter.update(resp.Response)
	}
}

// prToRecord converts a pull request and its discussion into one raw
// record. The text joins title, body, and comments so review context
// is searchable alongside the change description.
func prToRecord(owner, repo string, pr *gh.PullRequest, comments []string) domain.RawRecord {
	var text strings.Builder
	text.WriteString(pr.GetTitle())
	if body := pr.GetBody(); body != "" {
		text.WriteString("\n\n")
		text.WriteString(body)
	}
	for _, c := range comments {
		text.WriteString("\n\n")
		text.WriteString(c)
	}

	var labels []string
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}
	var reviewers []string
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, r.GetLogin())
	}

	return domain.RawRecord{
		ID:         fmt.Sprintf("%s/%s#%d", owner, repo, pr.GetNumber()),
		Collection: domain.CollectionPullRequests,
		Text:       text.String(),
		Timestamp:  pr.GetUpdatedAt().Time.UTC(),
		Author:     pr.GetUser().GetLogin(),
		Fields: map[string]any{
			"repo":      fmt.Sprintf("%s/%s", owner, repo),
			"number":    pr.GetNumber(),
			"state":     prState(pr),
			"title":     pr.GetTitle(),
			"labels":    labels,
			"reviewers": reviewers,
			"base":      pr.GetBase().GetRef(),
			"head":      pr.GetHead().GetRef(),
			"url":       pr.GetHTMLURL(),
			"draft":     pr.GetDraft(),
		},
	}
}

// prState folds GitHub's state + merged flag into one value.
func prState(pr *gh.PullRequest) string {
	if pr.MergedAt != nil {
		return "merged"
	}
	return pr.GetState()
}

// wrapError maps go-github errors onto the domain error taxonomy.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: resets at %s", domain.ErrRateLimited, rateErr.Rate.Reset.Time.Format(time.RFC3339))
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: secondary limit", domain.ErrRateLimited)
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch {
		case ghErr.Response.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, ghErr.Message)
		case ghErr.Response.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, ghErr.Message)
		case ghErr.Response.StatusCode >= 500:
			return fmt.Errorf("%w: github returned %d", domain.ErrVendorUnavailable, ghErr.Response.StatusCode)
		}
	}
	return err
}
