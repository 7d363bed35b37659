// Package runner executes scenario scripts against an agent: it resolves the
// session context, drives the turns strictly in order, records each turn as a
// traced observation, evaluates the declared assertions, and writes JSON
// reports. Independent scenarios can run in parallel through a bounded worker
// pool; turns within one scenario never do.
package runner
