package repository

import (
	"context"
	"fmt"
	"time"

	"popsim/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ClusterRepo handles cluster persistence
type ClusterRepo interface {
	Create(ctx context.Context, cluster *model.Cluster) error
	GetByID(ctx context.Context, id string) (*model.Cluster, error)
	// ListByZone returns a zone's clusters in creation order; an empty zoneID lists all
	ListByZone(ctx context.Context, zoneID string) ([]*model.Cluster, error)
	Update(ctx context.Context, cluster *model.Cluster) error
	Delete(ctx context.Context, id string) error
	DeleteByZone(ctx context.Context, zoneID string) (int64, error)
	// ReserveAgentNumbers atomically claims n consecutive agent numbers and
	// returns the first. Numbers are never handed out twice.
	ReserveAgentNumbers(ctx context.Context, clusterID string, n int) (int, error)
}

type clusterRepo struct {
	collection *mongo.Collection
}

// NewClusterRepo creates a MongoDB cluster repository
func NewClusterRepo(ctx context.Context, db *mongo.Database, ix *indexer) ClusterRepo {
	r := &clusterRepo{
		collection: db.Collection(ClustersCollection),
	}
	ix.create(ctx, r.collection, bson.D{{Key: "zoneId", Value: 1}, {Key: "createdAt", Value: 1}}, false)
	return r
}

func (r *clusterRepo) Create(ctx context.Context, cluster *model.Cluster) error {
	now := time.Now()
	cluster.CreatedAt = now
	cluster.UpdatedAt = now
	if cluster.NextAgentNumber < 1 {
		cluster.NextAgentNumber = 1
	}
	_, err := r.collection.InsertOne(ctx, cluster)
	return err
}

func (r *clusterRepo) GetByID(ctx context.Context, id string) (*model.Cluster, error) {
	var cluster model.Cluster
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cluster)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cluster, nil
}

func (r *clusterRepo) ListByZone(ctx context.Context, zoneID string) ([]*model.Cluster, error) {
	filter := bson.M{}
	if zoneID != "" {
		filter["zoneId"] = zoneID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	clusters := []*model.Cluster{}
	if err := cursor.All(ctx, &clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}

// Update replaces the editable fields. NextAgentNumber only moves through
// ReserveAgentNumbers.
func (r *clusterRepo) Update(ctx context.Context, cluster *model.Cluster) error {
	cluster.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"zoneId":      cluster.ZoneID,
		"name":        cluster.Name,
		"description": cluster.Description,
		"weight":      cluster.Weight,
		"updatedAt":   cluster.UpdatedAt,
	}}
	return matched(r.collection.UpdateOne(ctx, bson.M{"_id": cluster.ID}, update))
}

func (r *clusterRepo) Delete(ctx context.Context, id string) error {
	return deleted(r.collection.DeleteOne(ctx, bson.M{"_id": id}))
}

func (r *clusterRepo) DeleteByZone(ctx context.Context, zoneID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"zoneId": zoneID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *clusterRepo) ReserveAgentNumbers(ctx context.Context, clusterID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("cannot reserve %d agent numbers", n)
	}
	// Documents written before the counter existed have no nextAgentNumber;
	// they start at 1 like freshly created clusters.
	current := bson.D{{Key: "$max", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$nextAgentNumber", 1}}}, 1}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "nextAgentNumber", Value: bson.D{{Key: "$add", Value: bson.A{current, n}}}}}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before model.Cluster
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": clusterID}, update, opts).Decode(&before)
	if err == mongo.ErrNoDocuments {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return firstAgentNumber(before.NextAgentNumber), nil
}

// firstAgentNumber is the first number of a reservation given the stored
// counter; agent numbers start at 1
func firstAgentNumber(next int) int {
	if next < 1 {
		return 1
	}
	return next
}
