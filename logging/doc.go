// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer HarnessLogger with contextual
// helpers (scenario, trace, component) and domain specific helpers for turns,
// pipeline stages and trace flushes.
package logging
