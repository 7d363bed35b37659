// Package session houses concrete implementations of the core.ContextStore.
// The interface itself (and the Context struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (runner, analysis) from depending on concrete storage.
package session
