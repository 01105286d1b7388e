package api

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/fleetmap/fleetmap/pkg/api/routes"
	"github.com/fleetmap/fleetmap/pkg/broadcast"
	"github.com/fleetmap/fleetmap/pkg/caches"
	"github.com/fleetmap/fleetmap/pkg/database"
	"github.com/fleetmap/fleetmap/pkg/elastic_client"
	"github.com/fleetmap/fleetmap/pkg/fleetapi"
	"github.com/fleetmap/fleetmap/pkg/realtime/locationtracker"
	"github.com/fleetmap/fleetmap/pkg/redis_client"
	"github.com/fleetmap/fleetmap/pkg/repository"
	"github.com/fleetmap/fleetmap/pkg/util"
	"github.com/rs/zerolog/log"
)

const defaultFleetAPIURL = "https://api.fleet.example.com/v1"

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Provides the web API, live map feed and telemetry poller",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the fleetmap server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					env := util.GetEnvironmentVariables()

					fleetAPIURL := defaultFleetAPIURL
					if env["FLEETMAP_FLEET_API_URL"] != "" {
						fleetAPIURL = env["FLEETMAP_FLEET_API_URL"]
					}

					config := locationtracker.GetConfig()

					locationRepo := repository.NewMongoLocationRepository(database.MongoGlobalInstance.Database)
					vehicleRepo := repository.NewMongoVehicleRepository(database.MongoGlobalInstance.Database)

					metadata := caches.NewMetadata()
					metas, err := vehicleRepo.All()
					if err != nil {
						return err
					}
					metadata.Seed(metas)
					log.Info().Int("vehicles", len(metas)).Msg("Seeded vehicle metadata cache")

					latest := caches.NewRedisLatestLocations(redis_client.Client, config.LatestCacheTTL)

					hub := broadcast.NewHub()

					fleetClient := fleetapi.NewClient(fleetAPIURL, env["FLEETMAP_FLEET_API_TOKEN"])

					pipeline := locationtracker.NewPipeline(
						config,
						fleetClient,
						locationRepo,
						vehicleRepo,
						metadata,
						latest,
						hub,
					)
					pipeline.Start()

					go func() {
						err := SetupServer(c.String("listen"), &routes.Dependencies{
							LocationRepo: locationRepo,
							VehicleRepo:  vehicleRepo,

							Metadata: metadata,
							Latest:   latest,

							Hub:      hub,
							Pipeline: pipeline,

							WebhookSecret: env["FLEETMAP_WEBHOOK_SECRET"],
						})
						if err != nil {
							log.Fatal().Err(err).Msg("Web server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
		},
	}
}
