package provision

import "sync"

// Event names published during a run.
const (
	EventStepStarted  = "step.started"
	EventStepFinished = "step.finished"
	EventStepFailed   = "step.failed"
	EventRunFinished  = "run.finished"
)

// Event is a run lifecycle event: a name, the step it concerns (empty for
// run-level events) and optional fields.
type Event struct {
	Name   string
	Step   string
	Fields map[string]any
}

// EventPublisher receives events from the provisioner. Publish must not block
// or panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher stores events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns "name:step" for every event, in order.
func (p *MemoryPublisher) Names() []string {
	evs := p.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name + ":" + e.Step
	}
	return out
}
