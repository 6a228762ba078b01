// Package config loads the application configuration from a TOML file with
// environment-variable overrides. Defaults are chosen so the server runs
// against a local Ollama instance with no configuration file at all.
package config
