// Package tracing implements the trace recorder: it opens one Trace per run,
// nests Observations under its root, and guarantees that everything recorded
// is handed to the collector before the run closes (idempotent flush barrier,
// invoked from every exit path). A collector failure downgrades the recorder
// to a no-op for the remainder of the run instead of failing the scenario.
package tracing
