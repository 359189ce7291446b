package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPaths []string
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

// configPaths collects repeated -config flags so layers can be stacked
// (later files override earlier ones).
type configPaths []string

func (p *configPaths) String() string { return strings.Join(*p, ",") }

func (p *configPaths) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	var paths configPaths
	flag.Var(&paths, "config", "Path to a configuration layer, repeatable (env: LAYR_CONFIG)")
	flag.Var(&paths, "c", "Path to a configuration layer, repeatable (env: LAYR_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("LAYR_LOG_LEVEL", ""),
		"Override log level: debug, info, warn, error (env: LAYR_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("LAYR_LOG_FORMAT", ""),
		"Override log format: json, text (env: LAYR_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	cfg.ConfigPaths = paths
	if len(cfg.ConfigPaths) == 0 {
		if env := os.Getenv("LAYR_CONFIG"); env != "" {
			cfg.ConfigPaths = strings.Split(env, ",")
		}
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	for _, path := range cfg.ConfigPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - component query server

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a single config file
  %s --config=/etc/layr/server.yaml

  # Stack an environment overlay on a base config
  %s --config=base.yaml --config=production.yaml

  # Validate configuration only
  %s --config=base.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
