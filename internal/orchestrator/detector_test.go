package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stagepipe/internal/a2a"
)

type fakeProber map[string][]string

func (f fakeProber) Probe(_ context.Context, server string) ([]string, error) {
	tools, ok := f[server]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return tools, nil
}

func TestDetector_AllReady(t *testing.T) {
	client := &mockClient{cards: map[string]*a2a.AgentCard{
		"http://planner/": blockingCard("http://planner/"),
		"http://tool/":    blockingCard("http://tool/"),
	}}
	d := NewDetector(client, fakeProber{"TransportServer": {"FlightDetailsTool", "BusDetailsTool"}}, nil)

	h := d.Detect(context.Background(),
		[]Target{{Name: "planner", URL: "http://planner/"}, {Name: "tool", URL: "http://tool/"}},
		[]string{"TransportServer"},
	)

	assert.True(t, h.Ready())
	require.Len(t, h.Stages, 2)
	assert.Equal(t, "planner", h.Stages[0].Name)
	assert.Equal(t, "tool", h.Stages[1].Name)
	require.NotNil(t, h.Stages[0].Card)
	require.Len(t, h.Servers, 1)
	assert.Equal(t, []string{"FlightDetailsTool", "BusDetailsTool"}, h.Servers[0].Tools)
}

func TestDetector_ReportsEachFailure(t *testing.T) {
	client := &mockClient{cards: map[string]*a2a.AgentCard{
		"http://planner/": blockingCard("http://planner/"),
	}}
	d := NewDetector(client, fakeProber{"TransportServer": {"FlightDetailsTool"}}, nil)

	h := d.Detect(context.Background(),
		[]Target{{Name: "planner", URL: "http://planner/"}, {Name: "reflector", URL: "http://reflector/"}},
		[]string{"TransportServer", "EmployeeServer"},
	)

	assert.False(t, h.Ready())
	assert.NoError(t, h.Stages[0].Err)
	assert.Error(t, h.Stages[1].Err)
	assert.NoError(t, h.Servers[0].Err)
	assert.Error(t, h.Servers[1].Err)
	assert.Equal(t, 1, client.discoverCount("http://reflector/"))
}

func TestDetector_WithoutProber(t *testing.T) {
	d := NewDetector(&mockClient{}, nil, nil)

	h := d.Detect(context.Background(), nil, []string{"TransportServer"})
	assert.Empty(t, h.Servers)
	assert.True(t, h.Ready())
}
