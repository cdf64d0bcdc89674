package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/agent"
	"github.com/dusk-indust/stagepipe/internal/capability"
	"github.com/dusk-indust/stagepipe/internal/llm"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

// Task store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// DefaultHost is where stages listen when no host is configured.
const DefaultHost = "127.0.0.1"

// APIKeyEnv overrides llm.apiKey when set.
const APIKeyEnv = "STAGEPIPE_API_KEY"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds deployment settings loaded from stagepipe.yml.
type Config struct {
	Host string `yaml:"host,omitempty"`

	// Ports maps a stage role to the port it listens on.
	Ports map[agent.Role]int `yaml:"ports,omitempty"`

	// StageURLs points a role at a stage hosted elsewhere. An entry wins
	// over Host and Ports when the URL of that role is needed.
	StageURLs map[agent.Role]string `yaml:"stageURLs,omitempty"`

	// MCPEndpoints maps a capability target to its streamable HTTP
	// endpoint.
	MCPEndpoints map[string]string `yaml:"mcpEndpoints,omitempty"`

	Timeout      time.Duration   `yaml:"timeout,omitempty"`
	LLM          llm.Config      `yaml:"llm,omitempty"`
	TaskStore    TaskStoreConfig `yaml:"taskStore,omitempty"`
	RetainMemory bool            `yaml:"retainMemory,omitempty"`
	Verbose      bool            `yaml:"verbose,omitempty"`
}

// TaskStoreConfig selects where stages keep their tasks.
type TaskStoreConfig struct {
	Kind string `yaml:"kind,omitempty"`

	// Dir holds one SQLite database per stage.
	Dir string `yaml:"dir,omitempty"`
}

// Load attempts to read stagepipe.yml or stagepipe.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*Config, error) {
	for _, name := range []string{"stagepipe.yml", "stagepipe.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &Config{}, nil
}

// WithDefaults returns a copy of c with every unset field filled in and
// environment overrides applied.
func (c Config) WithDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}

	ports := make(map[agent.Role]int, len(agent.Roles))
	for i, role := range agent.Roles {
		ports[role] = agent.DefaultBasePort + i
	}
	for role, port := range c.Ports {
		ports[role] = port
	}
	c.Ports = ports

	endpoints := capability.DefaultEndpoints()
	for server, url := range c.MCPEndpoints {
		endpoints[server] = url
	}
	c.MCPEndpoints = endpoints

	if c.Timeout <= 0 {
		c.Timeout = orchestrator.DefaultTimeout
	}
	if c.TaskStore.Kind == "" {
		c.TaskStore.Kind = StoreMemory
	}
	if c.TaskStore.Kind == StoreSQLite && c.TaskStore.Dir == "" {
		c.TaskStore.Dir = ".stagepipe"
	}
	if key := os.Getenv(APIKeyEnv); key != "" {
		c.LLM.APIKey = key
	}
	return c
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch c.TaskStore.Kind {
	case "", StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("%w: taskStore.kind %q (want memory or sqlite)", ErrInvalid, c.TaskStore.Kind)
	}

	seen := make(map[int]agent.Role)
	for _, role := range agent.Roles {
		port, ok := c.Ports[role]
		if !ok {
			continue
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%w: port %d for %s", ErrInvalid, port, role)
		}
		if other, dup := seen[port]; dup {
			return fmt.Errorf("%w: %s and %s share port %d", ErrInvalid, other, role, port)
		}
		seen[port] = role
	}
	for role := range c.Ports {
		if _, ok := agent.ParseRole(string(role)); !ok {
			return fmt.Errorf("%w: ports: unknown role %q", ErrInvalid, role)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalid)
	}
	return nil
}

// Addr is the listen address of role.
func (c Config) Addr(role agent.Role) string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Ports[role]))
}

// StageURL is the base URL role is reached at.
func (c Config) StageURL(role agent.Role) string {
	if url := strings.TrimSpace(c.StageURLs[role]); url != "" {
		return url
	}
	return "http://" + c.Addr(role) + "/"
}

// PipelineURLs maps each driven pipeline stage to its stage's URL.
func (c Config) PipelineURLs() map[orchestrator.Stage]string {
	return map[orchestrator.Stage]string{
		orchestrator.StageDecompose:   c.StageURL(agent.RolePlanner),
		orchestrator.StageOrchestrate: c.StageURL(agent.RoleOrchestrator),
		orchestrator.StageSynthesize:  c.StageURL(agent.RoleReflector),
	}
}

// OpenTaskStore opens the task store for role.
func (c Config) OpenTaskStore(role agent.Role) (a2a.TaskStore, error) {
	switch c.TaskStore.Kind {
	case "", StoreMemory:
		return a2a.NewMemoryTaskStore(), nil
	case StoreSQLite:
		if err := os.MkdirAll(c.TaskStore.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: task store dir: %w", err)
		}
		store, err := a2a.OpenSQLiteTaskStore(filepath.Join(c.TaskStore.Dir, string(role)+".db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: taskStore.kind %q", ErrInvalid, c.TaskStore.Kind)
	}
}
