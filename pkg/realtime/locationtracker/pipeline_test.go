package locationtracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fleetmap/fleetmap/pkg/caches"
	"github.com/fleetmap/fleetmap/pkg/fleetapi"
	"github.com/fleetmap/fleetmap/pkg/fleetdf"
	"github.com/fleetmap/fleetmap/pkg/repository"
)

type recordingBroadcaster struct {
	mutex  sync.Mutex
	events []fleetdf.VehicleUpdateEvent
}

func (b *recordingBroadcaster) Broadcast(event interface{}) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if typed, ok := event.(fleetdf.VehicleUpdateEvent); ok {
		b.events = append(b.events, typed)
	}
}

func (b *recordingBroadcaster) Events() []fleetdf.VehicleUpdateEvent {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	events := make([]fleetdf.VehicleUpdateEvent, len(b.events))
	copy(events, b.events)

	return events
}

type testPipeline struct {
	pipeline     *Pipeline
	locationRepo *repository.MemoryLocationRepository
	vehicleRepo  *repository.MemoryVehicleRepository
	metadata     *caches.Metadata
	latest       *caches.MemoryLatestLocations
	broadcaster  *recordingBroadcaster
}

func newTestPipeline(serverURL string) *testPipeline {
	config := Config{
		PollInterval:        time.Minute,
		PageSize:            2,
		ThrottleWindow:      30 * time.Second,
		SpatialDeltaDegrees: 0.0001,
		LatestCacheTTL:      10 * time.Second,
		PollLogCapacity:     50,
	}

	locationRepo := repository.NewMemoryLocationRepository()
	vehicleRepo := repository.NewMemoryVehicleRepository()
	metadata := caches.NewMetadata()
	latest := caches.NewMemoryLatestLocations(config.LatestCacheTTL)
	broadcaster := &recordingBroadcaster{}

	return &testPipeline{
		pipeline: NewPipeline(
			config,
			fleetapi.NewClient(serverURL, "test-token"),
			locationRepo,
			vehicleRepo,
			metadata,
			latest,
			broadcaster,
		),
		locationRepo: locationRepo,
		vehicleRepo:  vehicleRepo,
		metadata:     metadata,
		latest:       latest,
		broadcaster:  broadcaster,
	}
}

func writePage(w http.ResponseWriter, records []map[string]interface{}, totalPages int) {
	response := map[string]interface{}{
		"data": records,
	}
	if totalPages > 0 {
		response["pagination"] = map[string]interface{}{"total_pages": totalPages}
	}

	json.NewEncoder(w).Encode(response)
}

func emptyAssets(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Path == "/assets" {
		writePage(w, nil, 0)
		return true
	}

	return false
}

func TestPipelineFirstReadingScenario(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if emptyAssets(w, r) {
			return
		}

		writePage(w, []map[string]interface{}{
			{
				"id": "T-1",
				"current_location": map[string]interface{}{
					"lat":        43.54,
					"lon":        -96.73,
					"speed_kph":  100,
					"bearing":    90,
					"located_at": "2025-01-01T00:00:00Z",
				},
			},
		}, 1)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	// Metadata created with id-as-name and the vehicle default color
	meta, _ := tp.vehicleRepo.Get("T-1")
	if meta == nil {
		t.Fatal("no VehicleMeta created for T-1")
	}
	if meta.Name != "T-1" || meta.Color != fleetdf.DefaultVehicleColor {
		t.Errorf("meta = %q/%q, want T-1/%s", meta.Name, meta.Color, fleetdf.DefaultVehicleColor)
	}

	// One canonical reading persisted
	if count := tp.locationRepo.Count("T-1"); count != 1 {
		t.Fatalf("persisted %d readings, want 1", count)
	}

	reading, _ := tp.locationRepo.LatestForVehicle("T-1")
	if reading.Speed < 62.13 || reading.Speed > 62.14 {
		t.Errorf("speed = %v, want ~62.1371", reading.Speed)
	}
	if reading.Heading != 90 {
		t.Errorf("heading = %v, want 90", reading.Heading)
	}
	if reading.Status != "moving" {
		t.Errorf("status = %q, want moving", reading.Status)
	}
	if reading.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not assigned")
	}

	// One broadcast carrying the display metadata
	events := tp.broadcaster.Events()
	if len(events) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(events))
	}
	if events[0].Type != fleetdf.VehicleUpdateEventTypeLocation {
		t.Errorf("event type = %q", events[0].Type)
	}
	if events[0].Data.Name != "T-1" || events[0].Data.Color != fleetdf.DefaultVehicleColor {
		t.Errorf("event meta = %q/%q", events[0].Data.Name, events[0].Data.Color)
	}
	if events[0].Data.VehicleID != "T-1" || events[0].Data.Latitude != 43.54 || events[0].Data.Speed != reading.Speed {
		t.Errorf("event did not carry the reading fields: %+v", events[0].Data)
	}

	// An identical record inside the throttle window is fully suppressed
	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle failed: %s", err)
	}

	if count := tp.locationRepo.Count("T-1"); count != 1 {
		t.Errorf("persisted %d readings after throttled cycle, want 1", count)
	}
	if len(tp.broadcaster.Events()) != 1 {
		t.Errorf("got %d broadcasts after throttled cycle, want 1", len(tp.broadcaster.Events()))
	}
}

func TestPipelinePaginationTermination(t *testing.T) {
	var requestedPages []int
	var mutex sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if emptyAssets(w, r) {
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		mutex.Lock()
		requestedPages = append(requestedPages, page)
		mutex.Unlock()

		// Every page full, explicit total of 3
		writePage(w, []map[string]interface{}{
			{"id": fmt.Sprintf("V-%d-a", page), "lat": 1.0 + float64(page), "lon": 2.0},
			{"id": fmt.Sprintf("V-%d-b", page), "lat": 1.0 + float64(page), "lon": 3.0},
		}, 3)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	if len(requestedPages) != 3 {
		t.Fatalf("requested %d pages %v, want exactly 3", len(requestedPages), requestedPages)
	}

	outcomes := tp.pipeline.PollLog().Recent(0)
	for _, outcome := range outcomes {
		if outcome.Class == fleetdf.TelemetryClassVehicles {
			if !outcome.Success || outcome.Processed != 6 {
				t.Errorf("vehicles outcome = %+v, want success with 6 processed", outcome)
			}
		}
	}
}

func TestPipelineShortPageTermination(t *testing.T) {
	var requestedPages []int
	var mutex sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if emptyAssets(w, r) {
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		mutex.Lock()
		requestedPages = append(requestedPages, page)
		mutex.Unlock()

		// No pagination block: full first page, short second page
		if page == 1 {
			writePage(w, []map[string]interface{}{
				{"id": "V-1", "lat": 1.0, "lon": 2.0},
				{"id": "V-2", "lat": 3.0, "lon": 4.0},
			}, 0)
			return
		}

		writePage(w, []map[string]interface{}{
			{"id": "V-3", "lat": 5.0, "lon": 6.0},
		}, 0)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	if len(requestedPages) != 2 {
		t.Errorf("requested %d pages %v, want 2", len(requestedPages), requestedPages)
	}

	for _, id := range []string{"V-1", "V-2", "V-3"} {
		if tp.locationRepo.Count(id) != 1 {
			t.Errorf("vehicle %s not persisted", id)
		}
	}
}

func TestPipelineClassFailureIndependence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/vehicles" {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"upstream maintenance"}`))
			return
		}

		writePage(w, []map[string]interface{}{
			{"id": "A-1", "lat": 1.0, "lon": 2.0},
		}, 1)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	// The assets class still ran despite the vehicles failure
	if tp.locationRepo.Count("asset-A-1") != 1 {
		t.Error("assets class did not run after vehicles failure")
	}

	var vehiclesOutcome, assetsOutcome *fleetdf.PollOutcome
	for _, outcome := range tp.pipeline.PollLog().Recent(0) {
		outcome := outcome
		switch outcome.Class {
		case fleetdf.TelemetryClassVehicles:
			vehiclesOutcome = &outcome
		case fleetdf.TelemetryClassAssets:
			assetsOutcome = &outcome
		}
	}

	if vehiclesOutcome == nil || vehiclesOutcome.Success {
		t.Errorf("vehicles outcome = %+v, want recorded failure", vehiclesOutcome)
	}
	if vehiclesOutcome != nil && vehiclesOutcome.Detail == "" {
		t.Error("failed outcome missing diagnostic detail")
	}
	if assetsOutcome == nil || !assetsOutcome.Success {
		t.Errorf("assets outcome = %+v, want success", assetsOutcome)
	}
}

func TestPipelineAssetsEndpointAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/assets" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		writePage(w, nil, 1)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	for _, outcome := range tp.pipeline.PollLog().Recent(0) {
		if !outcome.Success {
			t.Errorf("outcome %+v should be success - a missing endpoint is not an error", outcome)
		}
	}
}

func TestPipelineRecordFailuresDoNotAbortBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if emptyAssets(w, r) {
			return
		}

		writePage(w, []map[string]interface{}{
			{"id": "V-bad", "note": "no coordinates at all"},
			{"id": "V-zero", "lat": 0.0, "lon": 0.0},
			{"id": "V-good", "lat": 1.0, "lon": 2.0},
		}, 1)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	if tp.locationRepo.Count("V-good") != 1 {
		t.Error("valid record after malformed records was not persisted")
	}
	if tp.locationRepo.Count("V-bad") != 0 || tp.locationRepo.Count("V-zero") != 0 {
		t.Error("invalid records were persisted")
	}
}

func TestPipelineAssetPrefixAndColor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/vehicles" {
			writePage(w, nil, 1)
			return
		}

		writePage(w, []map[string]interface{}{
			{"id": "TRAILER-7", "lat": 5.0, "lon": 6.0},
		}, 1)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	meta, _ := tp.vehicleRepo.Get("asset-TRAILER-7")
	if meta == nil {
		t.Fatal("asset metadata not created under prefixed id")
	}
	if meta.Color != fleetdf.DefaultAssetColor {
		t.Errorf("asset color = %q, want %q", meta.Color, fleetdf.DefaultAssetColor)
	}
}

func TestPipelinePreservesCustomMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if emptyAssets(w, r) {
			return
		}

		writePage(w, []map[string]interface{}{
			{"id": "T-1", "lat": 1.0, "lon": 2.0},
		}, 1)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	custom := &fleetdf.VehicleMeta{
		VehicleID: "T-1",
		Name:      "Delivery Van",
		Color:     "#ff0000",
		CreatedAt: time.Now(),
	}
	tp.vehicleRepo.Save(custom)
	tp.metadata.Set(custom)

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	meta, _ := tp.vehicleRepo.Get("T-1")
	if meta.Name != "Delivery Van" || meta.Color != "#ff0000" {
		t.Errorf("custom metadata overwritten: %q/%q", meta.Name, meta.Color)
	}

	// The broadcast reflects the custom identity too
	events := tp.broadcaster.Events()
	if len(events) != 1 || events[0].Data.Name != "Delivery Van" {
		t.Errorf("broadcast did not carry custom metadata: %+v", events)
	}
}

func TestPipelineInvalidatesLatestCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if emptyAssets(w, r) {
			return
		}

		writePage(w, []map[string]interface{}{
			{"id": "T-1", "lat": 1.0, "lon": 2.0},
		}, 1)
	}))
	defer server.Close()

	tp := newTestPipeline(server.URL)

	tp.latest.Set(context.Background(), []fleetdf.VehicleSnapshot{{Name: "stale"}})

	if err := tp.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %s", err)
	}

	if _, hit := tp.latest.Get(context.Background()); hit {
		t.Error("latest-locations cache not invalidated by accepted reading")
	}
}

func TestPipelineMutualExclusion(t *testing.T) {
	tp := newTestPipeline("http://localhost:0")

	tp.pipeline.runningMutex.Lock()
	tp.pipeline.running = true
	tp.pipeline.runningMutex.Unlock()

	if err := tp.pipeline.RunCycle(context.Background()); err != ErrCycleInProgress {
		t.Errorf("overlapping cycle returned %v, want ErrCycleInProgress", err)
	}
}

func TestPipelineIngestWebhookRecord(t *testing.T) {
	tp := newTestPipeline("http://localhost:0")

	accepted, err := tp.pipeline.Ingest(context.Background(), fleetapi.RawRecord{
		"vehicle_id": "W-1",
		"location":   map[string]interface{}{"lat": 9.0, "lon": 8.0},
	})
	if err != nil {
		t.Fatalf("ingest failed: %s", err)
	}
	if !accepted {
		t.Fatal("webhook record not accepted")
	}

	if tp.locationRepo.Count("W-1") != 1 {
		t.Error("webhook record not persisted")
	}

	if _, err := tp.pipeline.Ingest(context.Background(), fleetapi.RawRecord{"lat": 0.0, "lon": 0.0}); err == nil {
		t.Error("zero-coordinate webhook record accepted")
	}
}
