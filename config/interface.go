// Package config loads, validates, and hot-reloads the YAML configuration
// for agentcore: iteration limits, checkpoint/planning/stuck thresholds,
// feedback storage, task-generation auto-approval, and memory settings
// (spec.md §6's configuration keys).
package config

// section is the Validate/SetDefaults contract every config block
// implements, the same pairing hector's own config.ConfigInterface uses.
type section interface {
	Validate() error
	SetDefaults()
}
