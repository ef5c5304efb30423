// Package config loads braid configuration from YAML.
//
// Environment variables written as ${VAR_NAME} are expanded before parsing,
// so secrets stay out of the file. Optional model presets live in a separate
// TOML catalog referenced by provider.presets_path.
package config
