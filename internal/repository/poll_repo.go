package repository

import (
	"context"

	"popsim/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PollRepo handles completed poll persistence
type PollRepo interface {
	Save(ctx context.Context, poll *model.PollResult) error
	GetByID(ctx context.Context, id string) (*model.PollResult, error)
	// List returns the newest polls without their panel and responses
	List(ctx context.Context, limit int) ([]*model.PollResult, error)
	Delete(ctx context.Context, id string) error
}

type pollRepo struct {
	collection *mongo.Collection
}

// NewPollRepo creates a MongoDB poll repository
func NewPollRepo(ctx context.Context, db *mongo.Database, ix *indexer) PollRepo {
	r := &pollRepo{
		collection: db.Collection(PollsCollection),
	}
	ix.create(ctx, r.collection, bson.D{{Key: "createdAt", Value: -1}}, false)
	return r
}

func (r *pollRepo) Save(ctx context.Context, poll *model.PollResult) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": poll.ID}, poll, opts)
	return err
}

func (r *pollRepo) GetByID(ctx context.Context, id string) (*model.PollResult, error) {
	var poll model.PollResult
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&poll)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

func (r *pollRepo) List(ctx context.Context, limit int) ([]*model.PollResult, error) {
	opts := listOptions(limit).SetProjection(bson.M{"panel": 0, "responses": 0})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	polls := []*model.PollResult{}
	if err := cursor.All(ctx, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

func (r *pollRepo) Delete(ctx context.Context, id string) error {
	return deleted(r.collection.DeleteOne(ctx, bson.M{"_id": id}))
}
