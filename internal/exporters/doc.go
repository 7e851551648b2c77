// Package exporters groups the source-specific exporter adapters.
// Each subpackage implements driven.Exporter for one vendor API:
//
//   - google/gmail: email messages
//   - google/calendar: calendar events
//   - slack: chat messages
//   - notion: wiki documents
//   - jira: tracker issues
//   - github: pull requests
//
// Exporters stream raw records over a channel pair and own their
// authentication, pagination, and vendor-side filtering. They carry no
// checkpoint state: incremental windows come in through ExportFilter.
package exporters
