// Package normalisers maps raw vendor records into uniform documents.
//
// All six sources share the same mechanics: keep the source-native ID,
// flatten vendor fields to the store's metadata shape, and attach the
// canonical author/timestamp/source keys. What differs per source is
// which vendor field carries the title and link, so one Normaliser
// type covers every collection with per-source constructors.
package normalisers

import (
	"fmt"
	"time"

	"github.com/custodia-labs/scribe/internal/core/domain"
	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser converts raw records of one collection into documents.
type Normaliser struct {
	collection domain.Collection
	source     string
	titleField string
	urlField   string
}

// Email normalises Gmail message records.
func Email() *Normaliser {
	return &Normaliser{
		collection: domain.CollectionEmail,
		source:     "gmail",
		titleField: "subject",
	}
}

// Chat normalises Slack message records. Chat messages carry no title.
func Chat() *Normaliser {
	return &Normaliser{
		collection: domain.CollectionChat,
		source:     "slack",
	}
}

// Wiki normalises Notion page records.
func Wiki() *Normaliser {
	return &Normaliser{
		collection: domain.CollectionWiki,
		source:     "notion",
		titleField: "title",
		urlField:   "url",
	}
}

// Issue normalises Jira issue records.
func Issue() *Normaliser {
	return &Normaliser{
		collection: domain.CollectionIssues,
		source:     "jira",
		titleField: "summary",
	}
}

// PullRequest normalises GitHub pull request records.
func PullRequest() *Normaliser {
	return &Normaliser{
		collection: domain.CollectionPullRequests,
		source:     "github",
		titleField: "title",
		urlField:   "url",
	}
}

// Calendar normalises Google Calendar event records.
func Calendar() *Normaliser {
	return &Normaliser{
		collection: domain.CollectionCalendar,
		source:     "calendar",
		titleField: "summary",
		urlField:   "html_link",
	}
}

// Collection returns the collection this normaliser serves.
func (n *Normaliser) Collection() domain.Collection { return n.collection }

// Normalise converts one raw record into a document. A record without
// an ID is malformed; every other defect degrades to a zero value.
func (n *Normaliser) Normalise(rec domain.RawRecord, defaults driven.NormaliseDefaults) (domain.Document, error) {
	if rec.ID == "" {
		return domain.Document{}, fmt.Errorf("%w: record has no id", domain.ErrMalformedRecord)
	}

	metadata := flattenFields(rec.Fields)
	metadata[domain.MetaSource] = n.source
	if rec.Author != "" {
		metadata[domain.MetaAuthor] = rec.Author
	}
	if !rec.Timestamp.IsZero() {
		metadata[domain.MetaTimestamp] = rec.Timestamp.UTC().Format(time.RFC3339)
	}
	n.promote(metadata, n.titleField, domain.MetaTitle)
	n.promote(metadata, n.urlField, domain.MetaURL)

	return domain.Document{
		ID:         rec.ID,
		Collection: n.collection,
		Text:       rec.Text,
		Metadata:   metadata,
		IngestedAt: defaults.IngestedAt,
	}, nil
}

// promote copies a vendor field under its canonical key when it holds
// a non-empty string.
func (n *Normaliser) promote(metadata map[string]any, field, canonical string) {
	if field == "" {
		return
	}
	if v, ok := metadata[field].(string); ok && v != "" {
		metadata[canonical] = v
	}
}
