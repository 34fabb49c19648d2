package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoToolResultRepository implements ToolResultRepository using MongoDB.
type MongoToolResultRepository struct {
	collection *mongo.Collection
}

// NewMongoToolResultRepository creates a tool-result repository.
// collectionName defaults to "tool_results" if empty.
func NewMongoToolResultRepository(db *mongo.Database, collectionName string) *MongoToolResultRepository {
	if collectionName == "" {
		collectionName = "tool_results"
	}
	return &MongoToolResultRepository{collection: db.Collection(collectionName)}
}

func (r *MongoToolResultRepository) Save(ctx context.Context, record ToolResultRecord) error {
	record.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": record.CallID}
	update := bson.M{"$set": record}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("repository: upsert tool result %q: %w", record.CallID, err)
	}

	return nil
}

func (r *MongoToolResultRepository) Get(ctx context.Context, callID string) (*ToolResultRecord, error) {
	filter := bson.M{"_id": callID}

	var record ToolResultRecord
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find tool result %q: %w", callID, err)
	}

	return &record, nil
}

// MongoProfileRepository implements ProfileRepository using MongoDB.
type MongoProfileRepository struct {
	collection *mongo.Collection
}

// NewMongoProfileRepository creates a profile repository.
// collectionName defaults to "profiles" if empty.
func NewMongoProfileRepository(db *mongo.Database, collectionName string) *MongoProfileRepository {
	if collectionName == "" {
		collectionName = "profiles"
	}
	return &MongoProfileRepository{collection: db.Collection(collectionName)}
}

func (r *MongoProfileRepository) Get(ctx context.Context, name string) (map[string]any, error) {
	filter := bson.M{"name": name}

	var profile map[string]any
	err := r.collection.FindOne(ctx, filter).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find profile %q: %w", name, err)
	}

	// The object id is neither JSON friendly nor useful to the model.
	delete(profile, "_id")

	return profile, nil
}

// MongoMeetingRepository implements MeetingRepository using MongoDB.
type MongoMeetingRepository struct {
	collection *mongo.Collection
}

// NewMongoMeetingRepository creates a meeting repository.
// collectionName defaults to "meetings" if empty.
func NewMongoMeetingRepository(db *mongo.Database, collectionName string) *MongoMeetingRepository {
	if collectionName == "" {
		collectionName = "meetings"
	}
	return &MongoMeetingRepository{collection: db.Collection(collectionName)}
}

func (r *MongoMeetingRepository) Create(ctx context.Context, meeting Meeting) error {
	_, err := r.collection.InsertOne(ctx, meeting)
	if err != nil {
		return fmt.Errorf("repository: insert meeting %q: %w", meeting.ID, err)
	}
	return nil
}

func (r *MongoMeetingRepository) SetStatus(ctx context.Context, id string, status MeetingStatus, confirmedBy string) (*Meeting, error) {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"status": status, "confirmed_by": confirmedBy}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var meeting Meeting
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&meeting)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: update meeting %q: %w", id, err)
	}

	return &meeting, nil
}

func (r *MongoMeetingRepository) List(ctx context.Context) ([]Meeting, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("repository: list meetings: %w", err)
	}
	defer cursor.Close(ctx)

	var meetings []Meeting
	if err := cursor.All(ctx, &meetings); err != nil {
		return nil, fmt.Errorf("repository: decode meetings: %w", err)
	}

	return meetings, nil
}
