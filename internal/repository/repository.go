// Package repository persists zones, clusters, demographics, agents and run
// results. Lookups that find nothing return (nil, nil); updates and deletes
// of a missing document return ErrNotFound.
package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an update or delete matches nothing
var ErrNotFound = errors.New("not found")

// Collection names
const (
	ZonesCollection        = "zones"
	ClustersCollection     = "clusters"
	DemographicsCollection = "demographics"
	AgentsCollection       = "agents"
	SimulationsCollection  = "simulations"
	PollsCollection        = "polls"
)

// Repos groups every repository a process needs
type Repos struct {
	Zones        ZoneRepo
	Clusters     ClusterRepo
	Demographics DemographicRepo
	Agents       AgentRepo
	Simulations  SimulationRepo
	Polls        PollRepo
}

// NewMongoRepos builds the MongoDB-backed repositories and ensures their indexes
func NewMongoRepos(ctx context.Context, db *mongo.Database, logger *zap.Logger) *Repos {
	ix := &indexer{logger: logger}
	return &Repos{
		Zones:        NewZoneRepo(db),
		Clusters:     NewClusterRepo(ctx, db, ix),
		Demographics: NewDemographicRepo(ctx, db, ix),
		Agents:       NewAgentRepo(ctx, db, ix),
		Simulations:  NewSimulationRepo(ctx, db, ix),
		Polls:        NewPollRepo(ctx, db, ix),
	}
}

// NewMemoryRepos builds process-local repositories
func NewMemoryRepos() *Repos {
	return &Repos{
		Zones:        NewMemoryZoneRepo(),
		Clusters:     NewMemoryClusterRepo(),
		Demographics: NewMemoryDemographicRepo(),
		Agents:       NewMemoryAgentRepo(),
		Simulations:  NewMemorySimulationRepo(),
		Polls:        NewMemoryPollRepo(),
	}
}

type indexer struct {
	logger *zap.Logger
}

func (ix *indexer) create(ctx context.Context, coll *mongo.Collection, keys bson.D, unique bool) {
	if ix == nil {
		return
	}
	opts := options.Index().SetUnique(unique)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	if err != nil && ix.logger != nil {
		ix.logger.Warn("failed to create index", zap.String("collection", coll.Name()), zap.Error(err))
	}
}

func matched(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleted(res *mongo.DeleteResult, err error) error {
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// listOptions sorts newest first and applies limit when positive
func listOptions(limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
