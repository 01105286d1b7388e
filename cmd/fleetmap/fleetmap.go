package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/fleetmap/fleetmap/pkg/api"
	"github.com/fleetmap/fleetmap/pkg/realtime/locationtracker"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("FLEETMAP_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("FLEETMAP_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "fleetmap",
		Description: "Fleet telemetry ingestion, history and live map feed",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			locationtracker.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
