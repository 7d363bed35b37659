package model

import (
	"github.com/hupe1980/tracebench/core"
)

// Exchange is one prior user/assistant pair replayed to the provider.
type Exchange struct {
	Input  string
	Output string
}

// ConversationHistory converts the session's turn history into ordered
// exchanges. Turns that produced no output (failed invocations) are skipped
// so the replayed conversation stays well-formed.
func ConversationHistory(sctx *core.Context) []Exchange {
	turns := sctx.Turns()
	history := make([]Exchange, 0, len(turns))
	for _, t := range turns {
		if t.Output == "" {
			continue
		}
		history = append(history, Exchange{Input: t.Input, Output: t.Output})
	}
	return history
}
