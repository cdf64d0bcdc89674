package agent

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/capability"
	"github.com/dusk-indust/stagepipe/internal/llm"
)

// DefaultBasePort is the planner's port; the other stages follow in Roles
// order.
const DefaultBasePort = 11000

// AgentFactory is a constructor that creates an Agent.
type AgentFactory func() Agent

// StoreFactory opens the task store for a role's executor.
type StoreFactory func(role Role) (a2a.TaskStore, error)

// Deps are the collaborators the stages are built from.
type Deps struct {
	// Model backs the planner and reflector. Nil selects offline mode.
	Model llm.Model

	// Client reaches the tool stage from the orchestrator.
	Client a2a.Client

	// Caller reaches the capability servers from the tool stage.
	Caller capability.Caller

	// ToolURL is the tool stage's base URL. When empty, SpawnAll points
	// the orchestrator at the tool stage it starts.
	ToolURL string

	// Stores opens per-role task stores. Nil means in-memory stores.
	Stores StoreFactory
}

// Registry maps stage roles to their factory constructors and manages
// the lifecycle of spawned executors.
type Registry struct {
	mu        sync.Mutex
	deps      Deps
	opts      []ExecutorOption
	factories map[Role]AgentFactory
	spawned   []*Executor
	toolURL   string
}

// NewRegistry creates a Registry pre-registered with all four stages. opts
// apply to every executor it builds.
func NewRegistry(deps Deps, opts ...ExecutorOption) *Registry {
	if deps.Client == nil {
		deps.Client = a2a.NewHTTPClient()
	}
	if deps.Caller == nil {
		deps.Caller = capability.NewMCPCaller(capability.DefaultEndpoints())
	}

	r := &Registry{
		deps:      deps,
		opts:      opts,
		factories: make(map[Role]AgentFactory),
		toolURL:   deps.ToolURL,
	}
	if r.toolURL == "" {
		r.toolURL = stageURL("127.0.0.1", DefaultBasePort+2)
	}
	r.factories[RolePlanner] = func() Agent { return NewPlanner(r.deps.Model) }
	r.factories[RoleOrchestrator] = func() Agent { return NewOrchestrator(r.deps.Client, r.toolURL) }
	r.factories[RoleTool] = func() Agent { return NewTool(r.deps.Caller) }
	r.factories[RoleReflector] = func() Agent { return NewReflector(r.deps.Model) }
	return r
}

// Register replaces the factory for role.
func (r *Registry) Register(role Role, factory AgentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[role] = factory
}

// Spawn creates an executor for a single role without starting it.
func (r *Registry) Spawn(role Role, opts ...ExecutorOption) (*Executor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ex, err := r.build(role, opts...)
	if err != nil {
		return nil, err
	}
	r.spawned = append(r.spawned, ex)
	return ex, nil
}

// Start spawns role and serves it on host:port.
func (r *Registry) Start(ctx context.Context, role Role, host string, port int) (*Executor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.start(ctx, role, host, port)
}

// SpawnAll starts every stage on host with sequential ports starting from
// basePort, in Roles order. When any stage fails to start, the ones already
// running are stopped.
func (r *Registry) SpawnAll(ctx context.Context, host string, basePort int) ([]*Executor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deps.ToolURL == "" {
		r.toolURL = stageURL(host, basePort+roleIndex(RoleTool))
	}

	var started []*Executor
	for i, role := range Roles {
		ex, err := r.start(ctx, role, host, basePort+i)
		if err != nil {
			for j := len(started) - 1; j >= 0; j-- {
				_ = started[j].Stop(ctx)
			}
			r.spawned = r.spawned[:len(r.spawned)-len(started)]
			return nil, err
		}
		started = append(started, ex)
	}
	return started, nil
}

// StopAll gracefully stops all spawned executors in reverse order.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for i := len(r.spawned) - 1; i >= 0; i-- {
		if err := r.spawned[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.spawned = nil
	return firstErr
}

// start must be called with r.mu held.
func (r *Registry) start(ctx context.Context, role Role, host string, port int) (*Executor, error) {
	ex, err := r.build(role, WithURL(stageURL(host, port)))
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if err := ex.Start(ctx, addr); err != nil {
		return nil, fmt.Errorf("start stage %q on %s: %w", role, addr, err)
	}
	r.spawned = append(r.spawned, ex)
	return ex, nil
}

// build must be called with r.mu held.
func (r *Registry) build(role Role, extra ...ExecutorOption) (*Executor, error) {
	factory, ok := r.factories[role]
	if !ok {
		return nil, fmt.Errorf("no factory registered for role %q", role)
	}

	opts := append([]ExecutorOption{}, r.opts...)
	if r.deps.Stores != nil {
		store, err := r.deps.Stores(role)
		if err != nil {
			return nil, fmt.Errorf("open task store for %q: %w", role, err)
		}
		opts = append(opts, WithTaskStore(store))
	}
	opts = append(opts, extra...)
	return NewExecutor(factory(), opts...), nil
}

// stageURL is the base URL a stage on host:port is reachable at.
func stageURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"
}

func roleIndex(role Role) int {
	for i, r := range Roles {
		if r == role {
			return i
		}
	}
	return -1
}
