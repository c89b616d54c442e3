package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/staffops/internal/domain/models"
)

// Repository defines the interface for the operator activity trail.
type Repository interface {
	SaveActivity(ctx context.Context, activity models.Activity) error
	RecentActivities(ctx context.Context, limit int64) ([]models.Activity, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	repo := &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: "activities",
	}

	if err := repo.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *MongoDBRepository) collection() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "entity_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create activity indexes: %w", err)
	}
	return nil
}

// SaveActivity stores one operator action outcome.
func (r *MongoDBRepository) SaveActivity(ctx context.Context, activity models.Activity) error {
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection().InsertOne(ctx, activity)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// RecentActivities returns the newest activities first.
func (r *MongoDBRepository) RecentActivities(ctx context.Context, limit int64) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.collection().Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer cur.Close(ctx)

	activities := []models.Activity{}
	if err := cur.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities: %w", err)
	}
	return activities, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
