// Package scenario defines the scripted scenario document driven by the
// runner: an ordered sequence of turns, each pairing a user input with its
// expected-behavior assertions. Documents are YAML with strict field
// validation so typos fail at load time rather than silently skipping checks.
package scenario
