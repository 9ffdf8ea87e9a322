package monitor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var ErrUnknownMonitor = errors.New("unknown monitor")

// Supervisor runs a fixed set of monitors side by side.
type Supervisor struct {
	monitors map[string]*Monitor
	order    []string
}

func NewSupervisor(monitors ...*Monitor) (*Supervisor, error) {
	s := &Supervisor{monitors: map[string]*Monitor{}}
	for _, m := range monitors {
		if _, exists := s.monitors[m.Name()]; exists {
			return nil, fmt.Errorf("duplicate monitor name %q", m.Name())
		}
		s.monitors[m.Name()] = m
		s.order = append(s.order, m.Name())
	}
	return s, nil
}

// Run blocks until ctx is cancelled and every monitor has returned.
func (s *Supervisor) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		m := s.monitors[name]
		group.Go(func() error {
			return m.Run(ctx)
		})
	}
	return group.Wait()
}

func (s *Supervisor) Monitor(name string) (*Monitor, error) {
	m, ok := s.monitors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMonitor, name)
	}
	return m, nil
}

func (s *Supervisor) Snapshots() []State {
	out := make([]State, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.monitors[name].Snapshot())
	}
	return out
}
