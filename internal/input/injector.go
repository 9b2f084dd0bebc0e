package input

import (
	"log/slog"
	"sync"
)

// Injector replays an event on the local desktop.
type Injector interface {
	Inject(event *Event) error
}

// Recorder is an Injector that keeps events instead of injecting them.
// Headless hosts and tests use it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

func (r *Recorder) Inject(e *Event) error {
	r.mu.Lock()
	r.events = append(r.events, *e)
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Debug("input event", "type", e.Type, "x", e.X, "y", e.Y)
	}
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
