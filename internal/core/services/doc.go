// Package services implements the core business logic (hexagon centre).
// Services implement the driving ports and depend only on driven ports,
// never on adapter packages.
//
//   - IngestService: runs exporter → normaliser → store pipelines with
//     incremental fetch windows and run history.
//   - SearchService: concurrent multi-source search with per-collection
//     score normalisation and partial-failure tolerance.
//   - ReportService: retrieval-grounded report generation with a
//     bounded draft/review loop.
package services
