package repository

import (
	"context"

	"popsim/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DemographicRepo handles demographic bucket persistence
type DemographicRepo interface {
	Create(ctx context.Context, d *model.Demographic) error
	GetByID(ctx context.Context, id string) (*model.Demographic, error)
	ListByZone(ctx context.Context, zoneID string) ([]*model.Demographic, error)
	Delete(ctx context.Context, id string) error
	DeleteByZone(ctx context.Context, zoneID string) (int64, error)
}

type demographicRepo struct {
	collection *mongo.Collection
}

// NewDemographicRepo creates a MongoDB demographic repository
func NewDemographicRepo(ctx context.Context, db *mongo.Database, ix *indexer) DemographicRepo {
	r := &demographicRepo{
		collection: db.Collection(DemographicsCollection),
	}
	ix.create(ctx, r.collection, bson.D{{Key: "zoneId", Value: 1}, {Key: "kind", Value: 1}}, false)
	return r
}

func (r *demographicRepo) Create(ctx context.Context, d *model.Demographic) error {
	_, err := r.collection.InsertOne(ctx, d)
	return err
}

func (r *demographicRepo) GetByID(ctx context.Context, id string) (*model.Demographic, error) {
	var d model.Demographic
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *demographicRepo) ListByZone(ctx context.Context, zoneID string) ([]*model.Demographic, error) {
	opts := options.Find().SetSort(bson.D{{Key: "kind", Value: 1}, {Key: "label", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"zoneId": zoneID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*model.Demographic{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *demographicRepo) Delete(ctx context.Context, id string) error {
	return deleted(r.collection.DeleteOne(ctx, bson.M{"_id": id}))
}

func (r *demographicRepo) DeleteByZone(ctx context.Context, zoneID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"zoneId": zoneID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
