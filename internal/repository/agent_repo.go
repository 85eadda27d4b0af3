package repository

import (
	"context"

	"popsim/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AgentRepo handles agent persistence
type AgentRepo interface {
	CreateMany(ctx context.Context, agents []model.Agent) error
	GetByID(ctx context.Context, id string) (*model.Agent, error)
	// ListByCluster returns a cluster's agents ordered by agent number
	ListByCluster(ctx context.Context, clusterID string) ([]*model.Agent, error)
	CountByCluster(ctx context.Context, clusterID string) (int64, error)
	Update(ctx context.Context, agent *model.Agent) error
	Delete(ctx context.Context, id string) error
	DeleteByCluster(ctx context.Context, clusterID string) (int64, error)
}

type agentRepo struct {
	collection *mongo.Collection
}

// NewAgentRepo creates a MongoDB agent repository
func NewAgentRepo(ctx context.Context, db *mongo.Database, ix *indexer) AgentRepo {
	r := &agentRepo{
		collection: db.Collection(AgentsCollection),
	}
	ix.create(ctx, r.collection, bson.D{{Key: "clusterId", Value: 1}, {Key: "agentNumber", Value: 1}}, true)
	return r
}

func (r *agentRepo) CreateMany(ctx context.Context, agents []model.Agent) error {
	if len(agents) == 0 {
		return nil
	}
	docs := make([]interface{}, len(agents))
	for i := range agents {
		docs[i] = agents[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *agentRepo) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	var agent model.Agent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&agent)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepo) ListByCluster(ctx context.Context, clusterID string) ([]*model.Agent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "agentNumber", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"clusterId": clusterID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	agents := []*model.Agent{}
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *agentRepo) CountByCluster(ctx context.Context, clusterID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"clusterId": clusterID})
}

func (r *agentRepo) Update(ctx context.Context, agent *model.Agent) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": agent.ID}, agent)
	return matched(res, err)
}

func (r *agentRepo) Delete(ctx context.Context, id string) error {
	return deleted(r.collection.DeleteOne(ctx, bson.M{"_id": id}))
}

func (r *agentRepo) DeleteByCluster(ctx context.Context, clusterID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"clusterId": clusterID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
