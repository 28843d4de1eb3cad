package agents

import (
	"fmt"
	"sort"
	"time"
)

// DefaultCallTimeout bounds a single remote call when no per-agent timeout is configured
const DefaultCallTimeout = 30 * time.Second

// Endpoint is the configured address of an agent
type Endpoint struct {
	Address string
	Timeout time.Duration
}

// Handle is the typed invocation handle of one agent
type Handle struct {
	Name     Name
	Address  string
	Timeout  time.Duration
	BaseTime time.Duration
}

// Registry maps agent names to invocation handles. It is immutable after construction.
type Registry struct {
	handles map[Name]Handle
}

// NewRegistry builds a registry from a name → endpoint table.
// Names outside the closed set are rejected here rather than at call time.
// Agents without an entry use fallback when its address is set.
func NewRegistry(endpoints map[string]Endpoint, fallback Endpoint) (*Registry, error) {
	handles := make(map[Name]Handle, len(baseProcessingTimes))

	var unknown []string
	for raw := range endpoints {
		if !Name(raw).Valid() {
			unknown = append(unknown, raw)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("agent table: %w", &UnknownAgentError{Name: unknown[0]})
	}

	for _, name := range All() {
		ep, ok := endpoints[string(name)]
		if !ok || ep.Address == "" {
			ep.Address = fallback.Address
		}
		if ep.Timeout <= 0 {
			ep.Timeout = fallback.Timeout
		}
		if ep.Timeout <= 0 {
			ep.Timeout = DefaultCallTimeout
		}

		handles[name] = Handle{
			Name:     name,
			Address:  ep.Address,
			Timeout:  ep.Timeout,
			BaseTime: name.BaseProcessingTime(),
		}
	}

	return &Registry{handles: handles}, nil
}

// Lookup returns the handle for name
func (r *Registry) Lookup(name Name) (Handle, error) {
	h, ok := r.handles[name]
	if !ok {
		return Handle{}, &UnknownAgentError{Name: string(name)}
	}
	return h, nil
}

// Addresses returns the distinct configured addresses
func (r *Registry) Addresses() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range All() {
		addr := r.handles[name].Address
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
