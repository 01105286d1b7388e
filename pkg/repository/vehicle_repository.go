package repository

import (
	"context"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type VehicleRepository interface {
	// Ensure creates the metadata record if this vehicle has never been
	// seen. An existing record, including any custom name or color, is
	// left untouched.
	Ensure(meta *fleetdf.VehicleMeta) error
	// Save upserts the record overriding name and color.
	Save(meta *fleetdf.VehicleMeta) error
	Get(vehicleID string) (*fleetdf.VehicleMeta, error)
	All() ([]*fleetdf.VehicleMeta, error)
	Delete(vehicleID string) error
}

type MongoVehicleRepository struct {
	collection *mongo.Collection
}

func NewMongoVehicleRepository(db *mongo.Database) *MongoVehicleRepository {
	return &MongoVehicleRepository{
		collection: db.Collection("vehicle_meta"),
	}
}

func (r *MongoVehicleRepository) Ensure(meta *fleetdf.VehicleMeta) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{"$setOnInsert": meta}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"vehicleid": meta.VehicleID}, update, opts)
	return err
}

func (r *MongoVehicleRepository) Save(meta *fleetdf.VehicleMeta) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"name":  meta.Name,
			"color": meta.Color,
		},
		"$setOnInsert": bson.M{
			"vehicleid": meta.VehicleID,
			"createdat": meta.CreatedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"vehicleid": meta.VehicleID}, update, opts)
	return err
}

func (r *MongoVehicleRepository) Get(vehicleID string) (*fleetdf.VehicleMeta, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var meta fleetdf.VehicleMeta
	err := r.collection.FindOne(ctx, bson.M{"vehicleid": vehicleID}).Decode(&meta)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	return &meta, err
}

func (r *MongoVehicleRepository) All() ([]*fleetdf.VehicleMeta, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var metas []*fleetdf.VehicleMeta
	if err = cursor.All(ctx, &metas); err != nil {
		return nil, err
	}

	return metas, nil
}

func (r *MongoVehicleRepository) Delete(vehicleID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"vehicleid": vehicleID})
	return err
}
