package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"parley/internal/app"
	"parley/pkg/config"
	"parley/pkg/logger"
	"parley/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	// Resolve config path (file flag wins over env)
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	eff, err := config.LoadEffective(cfgPath, addrVal, dbVal, setFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(eff.Config.Logging.Level, eff.Config.Logging.Format)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		// Startup failures leave a crash record so operators can see why
		// a supervised restart loop keeps dying.
		shutdown.Abort("startup failed", err, eff.DBPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited", err, eff.DBPath)
	}
}
