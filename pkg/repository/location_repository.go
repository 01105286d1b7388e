package repository

import (
	"context"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LocationRepository interface {
	Append(reading *fleetdf.LocationReading) error
	LatestForVehicle(vehicleID string) (*fleetdf.LocationReading, error)
	LatestAll() ([]*fleetdf.LocationReading, error)
	History(vehicleID string, since time.Time, limit int64) ([]*fleetdf.LocationReading, error)
	DeleteForVehicle(vehicleID string) error
}

type MongoLocationRepository struct {
	collection *mongo.Collection
}

func NewMongoLocationRepository(db *mongo.Database) *MongoLocationRepository {
	return &MongoLocationRepository{
		collection: db.Collection("location_readings"),
	}
}

func (r *MongoLocationRepository) Append(reading *fleetdf.LocationReading) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, reading)
	return err
}

func (r *MongoLocationRepository) LatestForVehicle(vehicleID string) (*fleetdf.LocationReading, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.M{"timestamp": -1})

	var reading fleetdf.LocationReading
	err := r.collection.FindOne(ctx, bson.M{"vehicleid": vehicleID}, opts).Decode(&reading)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	return &reading, err
}

func (r *MongoLocationRepository) LatestAll() ([]*fleetdf.LocationReading, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$vehicleid"},
			{Key: "reading", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
		}}},
		bson.D{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$reading"}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var readings []*fleetdf.LocationReading
	if err = cursor.All(ctx, &readings); err != nil {
		return nil, err
	}

	return readings, nil
}

func (r *MongoLocationRepository) History(vehicleID string, since time.Time, limit int64) ([]*fleetdf.LocationReading, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := bson.M{"vehicleid": vehicleID}
	if !since.IsZero() {
		query["timestamp"] = bson.M{"$gte": since}
	}

	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var readings []*fleetdf.LocationReading
	if err = cursor.All(ctx, &readings); err != nil {
		return nil, err
	}

	return readings, nil
}

func (r *MongoLocationRepository) DeleteForVehicle(vehicleID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.collection.DeleteMany(ctx, bson.M{"vehicleid": vehicleID})
	return err
}
