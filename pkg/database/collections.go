package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createLocationReadingsIndexes()
	createVehicleMetaIndexes()
}

func createLocationReadingsIndexes() {
	locationReadingsCollection := GetCollection("location_readings")
	locationReadingsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "vehicleid", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "receivedat", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := locationReadingsCollection.Indexes().CreateMany(context.Background(), locationReadingsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createVehicleMetaIndexes() {
	vehicleMetaCollection := GetCollection("vehicle_meta")
	vehicleMetaIndex := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "vehicleid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	opts := options.CreateIndexes()
	_, err := vehicleMetaCollection.Indexes().CreateMany(context.Background(), vehicleMetaIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
