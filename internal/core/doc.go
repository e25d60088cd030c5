// Package core provides the business logic for daily activity CSV imports.
//
// This package contains the reconciliation pipeline independent of any UI or
// transport layer. It is used by the web handlers and the importctl CLI.
//
// # Pipeline
//
// An import runs in one [Session], built fresh from the [Store] for every
// call and discarded afterwards:
//
//  1. [ParseRows] splits the text into header-keyed rows
//  2. [DetectFormat] picks the native or alternate column layout
//  3. [MapAlternateRow] rewrites alternate rows into canonical fields
//  4. [Session.Validate] resolves producers, canonicalizes sources and
//     reconciles totals, producing a [ValidationResult]
//  5. [Session.Execute] saves each [CanonicalEntry] in order and tallies
//     successes and failures
//
// Saves are fire-and-continue. A failed row does not stop the import and
// successful rows are never rolled back.
//
// # Service
//
// [Service] wraps the pipeline with a concurrency limit, optional archival of
// the raw file and an audit record per import.
//
//	svc := core.NewService(store, core.ServiceConfig{MaxConcurrent: 5},
//	    core.WithArchiver(archiver),
//	    core.WithRunRecorder(store),
//	)
//	report, err := svc.ImportCSV(ctx, "week.csv", data)
//
// # Error Handling
//
// Business-rule failures are strings in [ValidationResult.Errors], never Go
// errors. Technical errors are mapped to user-facing messages with [MapError].
package core
