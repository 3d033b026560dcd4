package core

import "errors"

// ErrNoDecision signals that a classifier could not produce a routing
// decision. Callers fall back to the next routing stage; the error never
// reaches the user.
var ErrNoDecision = errors.New("no routing decision")

// ErrAgentNotFound signals a registry miss for a routed domain. The
// orchestrator logs it and continues without that domain's result.
var ErrAgentNotFound = errors.New("agent not found for domain")
