package app

import (
	"fmt"

	"parley/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.Effective) error {
	// DB path must be present
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("database path is empty: set --db flag, PARLEY_DB_PATH env, or db.path in config")
	}

	// Beacon engine, when a beacon address is configured, must be one we ship
	if eff.Config.Server.Beacon.Addr != "" {
		switch eff.Config.Server.Beacon.Engine {
		case "", "fasthttp", "nethttp":
		default:
			return fmt.Errorf("unknown beacon engine %q: use fasthttp or nethttp", eff.Config.Server.Beacon.Engine)
		}
	}

	// A zero content cap would reject every message on arrival
	if eff.Config.Limits.MessageLength <= 0 {
		return fmt.Errorf("limits.message_length must be positive, got %d", eff.Config.Limits.MessageLength)
	}
	if eff.Config.Limits.BulkDeleteMessages <= 0 {
		return fmt.Errorf("limits.bulk_delete_messages must be positive, got %d", eff.Config.Limits.BulkDeleteMessages)
	}

	// The fan-out queues need room and at least one worker draining them
	if eff.Config.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be positive, got %d", eff.Config.Pipeline.QueueCapacity)
	}
	if eff.Config.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", eff.Config.Pipeline.Workers)
	}

	return nil
}
