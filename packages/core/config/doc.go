// Package config handles configuration loading and management for control.
//
// It provides functionality for:
//   - Loading configuration from .control.yml, .control.yaml, control.yml or
//     .control.json files
//   - Validating files against an embedded JSON schema
//   - Default configuration values and merging with command line overrides
package config
