package relayserver

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Command is a relay server operation selected on the command line.
type Command interface {
	Name() string
}

// RunCommand serves the HTTP API and websocket relay until the context ends.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// MigrateCommand creates or updates the share store schema.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

const usage = `subcommand required

Usage: flatplan-relay [flags] <command>

Commands:
  run       Start the relay server
  migrate   Create or update the share store schema

Environment:
  FLATPLAN_RELAY_ADDR     listen address (default :8787)
  FLATPLAN_STORE          memory or postgres (default memory)
  FLATPLAN_POSTGRES_DSN   PostgreSQL connection string
  FLATPLAN_LOG_FILE       append logs to this file instead of stderr

Examples:
  flatplan-relay run
  flatplan-relay -store postgres -postgres-dsn postgres://localhost/flatplan migrate
  flatplan-relay -config relay.yaml -read-only run`

// Parse reads the command and configuration from args. Settings are taken
// from the -config YAML file first, then FLATPLAN_* environment variables,
// then flags given explicitly on the command line.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("flatplan-relay", flag.ContinueOnError)

	var (
		configPath  = flagSet.String("config", "", "YAML configuration file")
		addr        = flagSet.String("addr", "", "Listen address")
		storeName   = flagSet.String("store", "", "Share store: memory or postgres")
		postgresDSN = flagSet.String("postgres-dsn", "", "PostgreSQL connection string")
		logFile     = flagSet.String("log-file", "", "Append logs to this file")
		logLevel    = flagSet.String("log-level", "", "Minimum log level")
		readOnly    = flagSet.Bool("read-only", false, "Refuse new shares")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, errors.New(usage)
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	case "migrate":
		cmd = &MigrateCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, migrate", remainingArgs[0])
	}

	config := DefaultConfig()
	if *configPath != "" {
		if err := loadYAML(*configPath, &config); err != nil {
			return nil, nil, err
		}
	}

	config.Addr = getEnv("FLATPLAN_RELAY_ADDR", config.Addr)
	config.Store = getEnv("FLATPLAN_STORE", config.Store)
	config.PostgresDSN = getEnv("FLATPLAN_POSTGRES_DSN", config.PostgresDSN)
	config.LogFile = getEnv("FLATPLAN_LOG_FILE", config.LogFile)

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			config.Addr = *addr
		case "store":
			config.Store = *storeName
		case "postgres-dsn":
			config.PostgresDSN = *postgresDSN
		case "log-file":
			config.LogFile = *logFile
		case "log-level":
			config.LogLevel = *logLevel
		case "read-only":
			config.ReadOnly = *readOnly
		}
	})

	switch config.Store {
	case StoreMemory:
	case StorePostgres:
		if config.PostgresDSN == "" {
			return nil, nil, errors.New("postgres store requires -postgres-dsn or FLATPLAN_POSTGRES_DSN")
		}
	default:
		return nil, nil, fmt.Errorf("invalid store: %s (must be %q or %q)", config.Store, StoreMemory, StorePostgres)
	}

	return cmd, &config, nil
}

func loadYAML(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", strconv.Quote(path), err)
	}
	return nil
}
