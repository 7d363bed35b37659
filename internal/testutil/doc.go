// Package testutil provides deterministic test doubles for the harness:
// a scripted agent that replays canned responses (optionally mutating the
// session context the way real tool handlers do) and small builders for
// scenario fixtures.
package testutil
