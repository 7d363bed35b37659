// Package model holds shared helpers for the provider-backed agent adapters
// in model/anthropic and model/openai. The adapters implement core.Agent:
// they replay the session's turn history as a conversation, invoke the
// provider API, and map failures onto the harness error taxonomy (ModelError
// for refused or malformed responses, NetworkError for unreachable upstreams).
package model
