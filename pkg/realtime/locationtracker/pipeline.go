package locationtracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/fleetmap/fleetmap/pkg/caches"
	"github.com/fleetmap/fleetmap/pkg/elastic_client"
	"github.com/fleetmap/fleetmap/pkg/fleetapi"
	"github.com/fleetmap/fleetmap/pkg/fleetdf"
	"github.com/fleetmap/fleetmap/pkg/observability"
	"github.com/fleetmap/fleetmap/pkg/repository"
)

// ErrCycleInProgress is returned when a manual trigger fires while a cycle
// is already running. Skipped triggers are lost, not deferred.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

const readingsIndexName = "fleetmap-location-readings-1"

// Broadcaster delivers one event to every live subscriber.
type Broadcaster interface {
	Broadcast(event interface{})
}

var telemetryClasses = []fleetdf.TelemetryClass{
	fleetdf.TelemetryClassVehicles,
	fleetdf.TelemetryClassAssets,
}

// Pipeline drives the fetch, normalize, gate, persist, broadcast cycle for
// both telemetry classes on a fixed interval.
type Pipeline struct {
	config Config
	client *fleetapi.Client

	locationRepo repository.LocationRepository
	vehicleRepo  repository.VehicleRepository

	metadata    *caches.Metadata
	latest      caches.LatestLocations
	broadcaster Broadcaster

	gate    *UpdateGate
	pollLog *PollLog

	runningMutex sync.Mutex
	running      bool
}

func NewPipeline(
	config Config,
	client *fleetapi.Client,
	locationRepo repository.LocationRepository,
	vehicleRepo repository.VehicleRepository,
	metadata *caches.Metadata,
	latest caches.LatestLocations,
	broadcaster Broadcaster,
) *Pipeline {
	return &Pipeline{
		config: config,
		client: client,

		locationRepo: locationRepo,
		vehicleRepo:  vehicleRepo,

		metadata:    metadata,
		latest:      latest,
		broadcaster: broadcaster,

		gate:    NewUpdateGate(config.ThrottleWindow, config.SpatialDeltaDegrees),
		pollLog: NewPollLog(config.PollLogCapacity),
	}
}

func (p *Pipeline) PollLog() *PollLog {
	return p.pollLog
}

// Enabled reports whether the upstream credential is present. Without it
// the timer is never armed and polling stays off until restart.
func (p *Pipeline) Enabled() bool {
	return p.client != nil && p.client.Token != ""
}

// Start arms the polling timer. It returns immediately; cycles run on a
// background goroutine for the life of the process.
func (p *Pipeline) Start() {
	if !p.Enabled() {
		log.Warn().Msg("Fleet API credential not set - telemetry polling disabled")
		return
	}

	log.Info().
		Dur("interval", p.config.PollInterval).
		Int("pagesize", p.config.PageSize).
		Msg("Starting telemetry poller")

	go func() {
		for {
			startTime := time.Now()

			if err := p.RunCycle(context.Background()); err != nil {
				log.Debug().Err(err).Msg("Skipped poll tick")
			}

			executionDuration := time.Since(startTime)
			waitTime := p.config.PollInterval - executionDuration

			if waitTime.Seconds() > 0 {
				time.Sleep(waitTime)
			}
		}
	}()
}

// RunCycle performs one full poll across both telemetry classes. At most
// one cycle runs at a time; a second invocation is rejected, not queued.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	p.runningMutex.Lock()
	if p.running {
		p.runningMutex.Unlock()
		return ErrCycleInProgress
	}
	p.running = true
	p.runningMutex.Unlock()

	defer func() {
		p.runningMutex.Lock()
		p.running = false
		p.runningMutex.Unlock()
	}()

	classPool := pool.New().WithMaxGoroutines(len(telemetryClasses))

	for _, class := range telemetryClasses {
		class := class
		classPool.Go(func() {
			p.pollClass(ctx, class)
		})
	}

	classPool.Wait()

	return nil
}

// pollClass pages through one telemetry class. A transport failure aborts
// this class only; record failures are skipped.
func (p *Pipeline) pollClass(ctx context.Context, class fleetdf.TelemetryClass) {
	accepted := 0
	page := 1

	for {
		result, err := p.client.ListPage(ctx, class, page, p.config.PageSize)

		if errors.Is(err, fleetapi.ErrEndpointAbsent) {
			// The account simply has no such feature - an empty success
			p.pollLog.Record(fleetdf.PollOutcome{
				Timestamp: time.Now(),
				Class:     class,
				Success:   true,
				Processed: accepted,
			})
			observability.PollCycles.WithLabelValues(string(class), "success").Inc()
			return
		}

		if err != nil {
			outcome := fleetdf.PollOutcome{
				Timestamp: time.Now(),
				Class:     class,
				Success:   false,
				Processed: accepted,
				Error:     err.Error(),
			}

			var transportErr *fleetapi.TransportError
			if errors.As(err, &transportErr) {
				outcome.Detail = transportErr.Body
			}

			p.pollLog.Record(outcome)
			observability.PollCycles.WithLabelValues(string(class), "failure").Inc()

			log.Error().Err(err).Str("class", string(class)).Int("page", page).Msg("Telemetry poll failed")
			return
		}

		for _, record := range result.Records {
			recordAccepted, err := p.ingestRecord(ctx, record, class)
			if err != nil {
				log.Debug().Err(err).Str("class", string(class)).Msg("Skipping telemetry record")
				continue
			}

			if recordAccepted {
				accepted++
			}
		}

		if result.TotalPages > 0 {
			if page >= result.TotalPages {
				break
			}
		} else if len(result.Records) < p.config.PageSize {
			// No explicit page count - a short page means the last one
			break
		}

		page++
	}

	p.pollLog.Record(fleetdf.PollOutcome{
		Timestamp: time.Now(),
		Class:     class,
		Success:   true,
		Processed: accepted,
	})
	observability.PollCycles.WithLabelValues(string(class), "success").Inc()

	log.Info().Str("class", string(class)).Int("accepted", accepted).Int("pages", page).Msg("Telemetry poll complete")
}

// Ingest runs a single record from the legacy webhook through the same
// normalize, gate, persist, broadcast path as polled records.
func (p *Pipeline) Ingest(ctx context.Context, record fleetapi.RawRecord) (bool, error) {
	return p.ingestRecord(ctx, record, fleetdf.TelemetryClassVehicles)
}

func (p *Pipeline) ingestRecord(ctx context.Context, record fleetapi.RawRecord, class fleetdf.TelemetryClass) (bool, error) {
	reading, err := NormalizeRecord(record, time.Now())
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrNoFix) {
			reason = "no_fix"
		}
		observability.ReadingsSkipped.WithLabelValues(reason).Inc()
		return false, err
	}

	if class == fleetdf.TelemetryClassAssets && !strings.HasPrefix(reading.VehicleID, fleetdf.AssetIDPrefix) {
		reading.VehicleID = fleetdf.AssetIDPrefix + reading.VehicleID
	}

	if err := p.ensureVehicleMeta(reading.VehicleID, class); err != nil {
		observability.ReadingsSkipped.WithLabelValues("storage_error").Inc()
		return false, err
	}

	accept, reason := p.gate.ShouldAccept(reading, time.Now())
	if !accept {
		observability.ReadingsSkipped.WithLabelValues(reason).Inc()
		return false, nil
	}

	reading.ReceivedAt = time.Now()

	if err := p.locationRepo.Append(reading); err != nil {
		observability.ReadingsSkipped.WithLabelValues("storage_error").Inc()
		return false, err
	}

	p.latest.Invalidate(ctx)
	p.broadcastReading(reading)
	p.indexReading(reading)

	observability.ReadingsAccepted.Inc()

	return true, nil
}

// ensureVehicleMeta lazily creates the metadata record the first time an id
// is ever seen. The check goes through the cache, not storage, so steady
// state ingestion costs no metadata queries.
func (p *Pipeline) ensureVehicleMeta(vehicleID string, class fleetdf.TelemetryClass) error {
	if p.metadata.Has(vehicleID) {
		return nil
	}

	meta := &fleetdf.VehicleMeta{
		VehicleID: vehicleID,
		Name:      vehicleID,
		Color:     class.DefaultColor(),
		CreatedAt: time.Now(),
	}

	if err := p.vehicleRepo.Ensure(meta); err != nil {
		return err
	}

	p.metadata.Set(meta)

	return nil
}

func (p *Pipeline) broadcastReading(reading *fleetdf.LocationReading) {
	var data fleetdf.VehicleUpdateEventData
	if err := copier.Copy(&data, reading); err != nil {
		log.Error().Err(err).Msg("Failed to copy reading into broadcast event")
		return
	}

	data.Name, data.Color = p.metadata.Get(reading.VehicleID)

	p.broadcaster.Broadcast(fleetdf.VehicleUpdateEvent{
		Type: fleetdf.VehicleUpdateEventTypeLocation,
		Data: data,
	})
}

func (p *Pipeline) indexReading(reading *fleetdf.LocationReading) {
	jsonBytes, err := json.Marshal(reading)
	if err != nil {
		return
	}

	elastic_client.IndexRequest(readingsIndexName, bytes.NewReader(jsonBytes))
}
