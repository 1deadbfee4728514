package tools

import (
	"context"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
)

// Dispatcher routes validated calls to their executors. Every failure mode
// comes back as a readable Result; the dispatcher never returns nil.
type Dispatcher struct {
	registry *Registry
	snapshot func() *dataset.Dataset
}

// NewDispatcher creates a dispatcher. snapshot returns the current play log
// and may return nil before one is loaded.
func NewDispatcher(registry *Registry, snapshot func() *dataset.Dataset) *Dispatcher {
	return &Dispatcher{registry: registry, snapshot: snapshot}
}

// Dispatch executes one call. A context cancelled before execution yields an
// aborted result without invoking the executor.
func (d *Dispatcher) Dispatch(ctx context.Context, call *Call) (result *Result) {
	if call == nil {
		return Errorf("tool call is nil")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool %s panicked: %v", call.Name, r)
			result = Errorf("tool %s failed unexpectedly", call.Name)
			result.ID = call.ID
		}
	}()

	select {
	case <-ctx.Done():
		result = Aborted()
		result.ID = call.ID
		return result
	default:
	}

	entry, ok := d.registry.entries[call.Name]
	if !ok {
		result = Errorf("unknown tool: %s", call.Name)
		result.ID = call.ID
		return result
	}

	if entry.schema.NeedsDataset {
		if d.snapshot == nil || d.snapshot() == nil || d.snapshot().Len() == 0 {
			result = Errorf("no listening data is loaded yet; ask the user to import their streaming history first")
			result.ID = call.ID
			return result
		}
	}

	logger.Debug("dispatching tool %s (call %s)", call.Name, call.ID)
	result = entry.executor.Execute(ctx, call.Arguments)
	if result == nil {
		result = Errorf("tool %s returned no result", call.Name)
	}
	result.ID = call.ID
	return result
}
