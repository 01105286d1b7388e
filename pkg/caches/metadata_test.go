package caches

import (
	"testing"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
)

func TestMetadataDefaultsOnMiss(t *testing.T) {
	metadata := NewMetadata()

	name, color := metadata.Get("T-9")
	if name != "T-9" {
		t.Errorf("name = %q, want the vehicle id itself", name)
	}
	if color != fleetdf.DefaultVehicleColor {
		t.Errorf("color = %q, want %q", color, fleetdf.DefaultVehicleColor)
	}

	// Asset ids fall back to the asset palette
	name, color = metadata.Get("asset-TRAILER-3")
	if name != "asset-TRAILER-3" || color != fleetdf.DefaultAssetColor {
		t.Errorf("asset miss = %q/%q, want id/%q", name, color, fleetdf.DefaultAssetColor)
	}

	if metadata.Has("T-9") {
		t.Error("Has reported true for an id that was never stored")
	}
}

func TestMetadataSetAndDelete(t *testing.T) {
	metadata := NewMetadata()

	metadata.Set(&fleetdf.VehicleMeta{
		VehicleID: "T-1",
		Name:      "Delivery Van",
		Color:     "#ff0000",
		CreatedAt: time.Now(),
	})

	if !metadata.Has("T-1") {
		t.Fatal("Has reported false after Set")
	}

	name, color := metadata.Get("T-1")
	if name != "Delivery Van" || color != "#ff0000" {
		t.Errorf("got %q/%q, want Delivery Van/#ff0000", name, color)
	}

	metadata.Delete("T-1")

	if metadata.Has("T-1") {
		t.Error("Has reported true after Delete")
	}

	// Reads degrade back to defaults, never error
	name, color = metadata.Get("T-1")
	if name != "T-1" || color != fleetdf.DefaultVehicleColor {
		t.Errorf("post-delete read = %q/%q, want defaults", name, color)
	}
}

func TestMetadataSeed(t *testing.T) {
	metadata := NewMetadata()

	metadata.Seed([]*fleetdf.VehicleMeta{
		{VehicleID: "T-1", Name: "One", Color: "#111111"},
		{VehicleID: "T-2", Name: "Two", Color: "#222222"},
	})

	for id, want := range map[string]string{"T-1": "One", "T-2": "Two"} {
		if name, _ := metadata.Get(id); name != want {
			t.Errorf("Get(%s) name = %q, want %q", id, name, want)
		}
	}
}
