// Package config provides configuration management for the query server.
//
// This package handles loading and validation of server configuration from
// YAML files and environment variables.
//
// # Core Components
//
// Config: Main configuration structure covering the transports (HTTP POST
// + WebSocket, NATS request/reply), the metrics endpoint, and logging.
//
// Loader: Loads configuration with layer merging (base + overrides) and
// environment variable overrides for deployment scenarios.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/production.yaml") // Overrides base
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
