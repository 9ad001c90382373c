// Package main applies or rolls back the kindfund schema migrations.
//
// Usage:
//
//	migrate up
//	migrate down [steps]
//	migrate version
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v10"

	"github.com/kindfund/kindfund/internal/bootstrap"
	"github.com/kindfund/kindfund/internal/repository"
)

type options struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
}

func main() {
	var opts options
	if err := env.Parse(&opts); err != nil {
		fmt.Fprintln(os.Stderr, "failed to parse config:", err)
		os.Exit(1)
	}
	logger := bootstrap.NewLogger(os.Stdout, opts.LogLevel, opts.LogFormat, "kindfund-migrate")

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "up":
		err = repository.Migrate(opts.DatabaseURL)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil {
				logger.Error("invalid step count", "value", os.Args[2])
				os.Exit(2)
			}
		}
		err = repository.MigrateDown(opts.DatabaseURL, steps)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = repository.SchemaVersion(opts.DatabaseURL)
		if err == nil {
			logger.Info("schema version", "version", version, "dirty", dirty)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down or version)\n", cmd)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("migration failed", "command", cmd, "error", bootstrap.SanitizeError(err, opts.DatabaseURL))
		os.Exit(1)
	}
	logger.Info("done", "command", cmd)
}
