// Package collector houses concrete implementations of the core.Collector
// ingestion backend plus the matching core.TraceReader views. The in-memory
// store suits tests and single-process runs; the sqlite sub-package persists
// flushed traces for offline audit.
package collector
