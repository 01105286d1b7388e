package locationtracker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"

	"github.com/fleetmap/fleetmap/pkg/fleetapi"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Telemetry ingestion pipeline tools",
		Subcommands: []*cli.Command{
			{
				Name:      "test-normalize",
				Usage:     "parse a raw telemetry record and print the canonical reading",
				ArgsUsage: "<json record>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("expected exactly one JSON record argument")
					}

					var record fleetapi.RawRecord
					if err := json.Unmarshal([]byte(c.Args().First()), &record); err != nil {
						return err
					}

					reading, err := NormalizeRecord(record, time.Now())
					pretty.Println(reading, err)

					return nil
				},
			},
		},
	}
}
