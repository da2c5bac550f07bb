package processors

import (
	"context"

	"finance_tracker/internal/ports"
)

type NoopProcessor struct{}

func (NoopProcessor) Type() string { return "noop" }

func (NoopProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	return nil
}

// DefaultRegistry returns the processors that need no backend.
func DefaultRegistry() map[string]ports.Processor {
	return map[string]ports.Processor{
		"noop": NoopProcessor{},
	}
}

// Registry adds procs on top of DefaultRegistry, keyed by Type.
func Registry(procs ...ports.Processor) map[string]ports.Processor {
	reg := DefaultRegistry()
	for _, p := range procs {
		reg[p.Type()] = p
	}
	return reg
}
