package agent

import "errors"

// The agent's error taxonomy. Only configuration problems (caught before the
// loop starts) are fatal; everything that happens inside a turn either becomes
// an error-flagged tool result handed back to the model, or is surfaced to the
// user with the conversation left intact so the turn can be retried.

// ErrRoundLimit is returned by [Loop.RunTurn] when a single user turn exceeds
// the configured number of model rounds. It bounds runaway tool-call cycles in
// which the model keeps requesting tools without ever producing text.
var ErrRoundLimit = errors.New("agent: model round limit exceeded for this turn")
