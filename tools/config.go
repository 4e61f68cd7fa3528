package tools

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Definition is the generic, YAML-decoded shape of one configured tool,
// before its type-specific Config block is decoded into a concrete struct.
type Definition struct {
	Name    string
	Type    string
	Enabled bool
	Config  map[string]any
}

// decode fills dst (a pointer to a concrete *Config struct, e.g.
// *BashConfig) from a Definition's generic Config map. This replaces
// hector's NewCommandToolWithConfig, which copied each field by hand with
// a type assertion per key.
func decode(raw map[string]any, dst any) error {
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("tools: build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("tools: decode config for %v: %w", dst, err)
	}
	return nil
}

// NewBashToolFromDefinition builds a BashTool from a generic Definition.
func NewBashToolFromDefinition(def Definition, ws *Workspace) (*BashTool, error) {
	cfg := defaultBashConfig()
	if err := decode(def.Config, &cfg); err != nil {
		return nil, err
	}
	return NewBashTool(cfg, ws), nil
}

// BuildFromDefinitions constructs and registers every enabled tool named
// in defs into a fresh Registry, dispatching on Definition.Type.
func BuildFromDefinitions(defs []Definition, ws *Workspace) (*Registry, error) {
	reg := NewRegistry()
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		var tool Tool
		var err error
		switch def.Type {
		case "bash":
			tool, err = NewBashToolFromDefinition(def, ws)
		case "read_file":
			tool = NewReadFileTool(ws)
		case "write_file":
			tool = NewWriteFileTool(ws)
		case "read_dir":
			tool = NewReadDirTool(ws)
		case "http_fetch":
			tool = NewHTTPFetchTool()
		case "git":
			tool = NewGitTool(ws)
		default:
			return nil, fmt.Errorf("tools: unknown tool type %q for %q", def.Type, def.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("tools: build %q: %w", def.Name, err)
		}
		if err := reg.RegisterTool(tool); err != nil {
			return nil, fmt.Errorf("tools: register %q: %w", def.Name, err)
		}
	}
	return reg, nil
}

// DefaultRegistry registers the full built-in tool set under a single
// workspace root, used when no explicit tool configuration is supplied.
func DefaultRegistry(ws *Workspace) (*Registry, error) {
	return BuildFromDefinitions([]Definition{
		{Name: "run_bash", Type: "bash", Enabled: true},
		{Name: "read_file", Type: "read_file", Enabled: true},
		{Name: "write_file", Type: "write_file", Enabled: true},
		{Name: "read_dir", Type: "read_dir", Enabled: true},
		{Name: "http_fetch", Type: "http_fetch", Enabled: true},
		{Name: "git", Type: "git", Enabled: true},
	}, ws)
}
