package orchestrator

import (
	"context"

	"github.com/cargomesh/cargomesh/core"
)

// QueryStream runs the full request path while emitting typed events. The
// ordering contract: domain_decision is strictly first, done is strictly
// last and carries the final answer with the aggregated results. Agent
// events (token, tool_call, tool_result) and cross_domain markers arrive in
// execution order between the two. The channel closes after done.
func (o *Orchestrator) QueryStream(ctx context.Context, text string, optFns ...func(o *QueryOptions)) <-chan core.Event {
	events := make(chan core.Event, 64)
	go func() {
		defer close(events)
		emit := func(ev core.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		result, err := o.execute(ctx, text, false, emit, optFns...)
		if err != nil {
			emit(core.NewErrorEvent(core.DomainUnknown, err.Error()))
			result = core.MultiAgentResult{Answer: "No agent could handle this request."}
		}
		emit(core.NewDoneEvent(result))
	}()
	return events
}
