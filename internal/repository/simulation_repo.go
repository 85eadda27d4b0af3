package repository

import (
	"context"

	"popsim/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SimulationRepo handles completed simulation persistence
type SimulationRepo interface {
	Save(ctx context.Context, sim *model.Simulation) error
	GetByID(ctx context.Context, id string) (*model.Simulation, error)
	// List returns the newest simulations without their panel and results
	List(ctx context.Context, limit int) ([]*model.Simulation, error)
	Delete(ctx context.Context, id string) error
}

type simulationRepo struct {
	collection *mongo.Collection
}

// NewSimulationRepo creates a MongoDB simulation repository
func NewSimulationRepo(ctx context.Context, db *mongo.Database, ix *indexer) SimulationRepo {
	r := &simulationRepo{
		collection: db.Collection(SimulationsCollection),
	}
	ix.create(ctx, r.collection, bson.D{{Key: "createdAt", Value: -1}}, false)
	ix.create(ctx, r.collection, bson.D{{Key: "runId", Value: 1}}, false)
	return r
}

func (r *simulationRepo) Save(ctx context.Context, sim *model.Simulation) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": sim.ID}, sim, opts)
	return err
}

func (r *simulationRepo) GetByID(ctx context.Context, id string) (*model.Simulation, error) {
	var sim model.Simulation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&sim)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sim, nil
}

func (r *simulationRepo) List(ctx context.Context, limit int) ([]*model.Simulation, error) {
	opts := listOptions(limit).SetProjection(bson.M{"panel": 0, "results": 0})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sims := []*model.Simulation{}
	if err := cursor.All(ctx, &sims); err != nil {
		return nil, err
	}
	return sims, nil
}

func (r *simulationRepo) Delete(ctx context.Context, id string) error {
	return deleted(r.collection.DeleteOne(ctx, bson.M{"_id": id}))
}
