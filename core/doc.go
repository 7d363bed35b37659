// Package core defines the shared domain types and service interfaces of the
// harness: the per-session Context carried across turns, the Trace /
// Observation model recorded for every unit of work, the Agent and Collector
// collaborator contracts, and the error taxonomy. Implementations live in
// sibling packages (session, collector, tracing, runner) and depend only on
// the contracts declared here.
package core
