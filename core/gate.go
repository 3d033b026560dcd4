package core

import "context"

// CallGate bounds the number of concurrently in-flight completion-oracle
// calls process-wide. External providers rate limit aggressively, so the
// gate is shared by every agent, the router and the synthesizer rather than
// owned by any one of them.
//
// A zero or negative limit disables gating.
type CallGate struct {
	sem chan struct{}
}

// NewCallGate creates a gate admitting at most limit concurrent calls.
func NewCallGate(limit int) *CallGate {
	if limit <= 0 {
		return &CallGate{}
	}
	return &CallGate{sem: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *CallGate) Acquire(ctx context.Context) error {
	if g == nil || g.sem == nil {
		return nil
	}
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired earlier. Safe to call on an unlimited gate.
func (g *CallGate) Release() {
	if g == nil || g.sem == nil {
		return
	}
	<-g.sem
}

// InFlight returns the number of currently held slots.
func (g *CallGate) InFlight() int {
	if g == nil || g.sem == nil {
		return 0
	}
	return len(g.sem)
}
