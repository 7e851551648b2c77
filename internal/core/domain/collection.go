package domain

// Collection is a named logical partition of the document store.
// Each source type writes into its own collection. Collections are
// created on first write and never deleted by this system.
type Collection string

// Known collections, one per ingestion source.
const (
	CollectionEmail        Collection = "email_messages"
	CollectionChat         Collection = "chat_messages"
	CollectionWiki         Collection = "wiki_documents"
	CollectionIssues       Collection = "jira_issues"
	CollectionPullRequests Collection = "pull_requests"
	CollectionCalendar     Collection = "calendar_events"
)

// AllCollections lists every known collection in canonical order.
// The order matters: cross-collection merge uses it as the default
// tie-break when the caller does not name collections explicitly.
func AllCollections() []Collection {
	return []Collection{
		CollectionEmail,
		CollectionChat,
		CollectionWiki,
		CollectionIssues,
		CollectionPullRequests,
		CollectionCalendar,
	}
}

// Description returns a human-readable description of the collection,
// used when asking a language model which collections to query.
func (c Collection) Description() string {
	switch c {
	case CollectionEmail:
		return "Email messages sent to and from team members, updated at a regular frequency."
	case CollectionChat:
		return "Messages exchanged in team chat channels, capturing real-time discussion."
	case CollectionWiki:
		return "Internal knowledge-base documents: guidelines, tech specs, and planning docs."
	case CollectionIssues:
		return "Issues from the project tracker: tasks, bugs, epics, and features."
	case CollectionPullRequests:
		return "Pull requests with their descriptions, review comments, and participants."
	case CollectionCalendar:
		return "Calendar events with attendees, agendas, and scheduling details."
	default:
		return string(c)
	}
}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	for _, known := range AllCollections() {
		if c == known {
			return true
		}
	}
	return false
}
