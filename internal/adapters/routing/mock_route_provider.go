package routing

import (
	"context"
	"distance-matrix-service/internal/domain"
	"sync"
)

// MockRouteProvider replays a scripted sequence of outcomes, one per call.
// When the script runs out the last step repeats.
type MockRouteProvider struct {
	name  string
	mu    sync.Mutex
	steps []MockStep
	calls int
}

type MockStep struct {
	Route domain.RouteFragment
	Err   error
}

func NewMockRouteProvider(name string, steps ...MockStep) *MockRouteProvider {
	return &MockRouteProvider{name: name, steps: steps}
}

func (m *MockRouteProvider) Name() string { return m.name }

func (m *MockRouteProvider) Route(ctx context.Context, from, to domain.Coordinates) (domain.RouteFragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.steps) == 0 {
		m.calls++
		return domain.RouteFragment{}, context.DeadlineExceeded
	}

	idx := m.calls
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	m.calls++

	s := m.steps[idx]
	return s.Route, s.Err
}

// Calls returns how many times Route has been invoked.
func (m *MockRouteProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
