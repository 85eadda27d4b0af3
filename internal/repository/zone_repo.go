package repository

import (
	"context"
	"time"

	"popsim/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ZoneRepo handles zone persistence
type ZoneRepo interface {
	Create(ctx context.Context, zone *model.Zone) error
	GetByID(ctx context.Context, id string) (*model.Zone, error)
	List(ctx context.Context) ([]*model.Zone, error)
	Update(ctx context.Context, zone *model.Zone) error
	Delete(ctx context.Context, id string) error
}

type zoneRepo struct {
	collection *mongo.Collection
}

// NewZoneRepo creates a MongoDB zone repository
func NewZoneRepo(db *mongo.Database) ZoneRepo {
	return &zoneRepo{
		collection: db.Collection(ZonesCollection),
	}
}

func (r *zoneRepo) Create(ctx context.Context, zone *model.Zone) error {
	now := time.Now()
	zone.CreatedAt = now
	zone.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, zone)
	return err
}

func (r *zoneRepo) GetByID(ctx context.Context, id string) (*model.Zone, error) {
	var zone model.Zone
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&zone)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *zoneRepo) List(ctx context.Context) ([]*model.Zone, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	zones := []*model.Zone{}
	if err := cursor.All(ctx, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

func (r *zoneRepo) Update(ctx context.Context, zone *model.Zone) error {
	zone.UpdatedAt = time.Now()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": zone.ID}, zone)
	return matched(res, err)
}

func (r *zoneRepo) Delete(ctx context.Context, id string) error {
	return deleted(r.collection.DeleteOne(ctx, bson.M{"_id": id}))
}
