package llms

import (
	"fmt"

	"github.com/forgekeeper/agentcore/registry"
)

// Registry manages named Client instances, analogous to hector's
// LLMRegistry wrapping a generic BaseRegistry.
type Registry struct {
	*registry.BaseRegistry[Client]
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Client]()}
}

// RegisterClient registers a named Client.
func (r *Registry) RegisterClient(name string, c Client) error {
	if name == "" {
		return fmt.Errorf("llms: client name cannot be empty")
	}
	if c == nil {
		return fmt.Errorf("llms: client cannot be nil")
	}
	return r.Register(name, c)
}

// GetClient retrieves a named Client.
func (r *Registry) GetClient(name string) (Client, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("llms: client %q not found", name)
	}
	return c, nil
}
