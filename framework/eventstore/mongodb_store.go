package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/events"
)

// MongoDBEventStoreConfig конфигурация для MongoDB Event Store
type MongoDBEventStoreConfig struct {
	URI         string
	Database    string
	Collection  string
	Timeout     int // в секундах
	MaxPoolSize int
	MinPoolSize int
}

// Validate проверяет корректность конфигурации
func (c MongoDBEventStoreConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("URI cannot be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("database cannot be empty")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	return nil
}

// DefaultMongoDBEventStoreConfig возвращает конфигурацию по умолчанию
func DefaultMongoDBEventStoreConfig() MongoDBEventStoreConfig {
	return MongoDBEventStoreConfig{
		URI:         "mongodb://localhost:27017",
		Database:    "stockflow",
		Collection:  "domain_events",
		Timeout:     10,
		MaxPoolSize: 100,
		MinPoolSize: 10,
	}
}

type mongoEventDocument struct {
	SubjectID string                 `bson:"subject_id"`
	EventKind string                 `bson:"event_kind"`
	EventID   string                 `bson:"event_id"`
	EventData string                 `bson:"event_data"`
	Metadata  map[string]interface{} `bson:"metadata"`
	CreatedAt time.Time              `bson:"created_at"`
	UpdatedAt time.Time              `bson:"updated_at"`
}

// MongoDBEventStore реализация EventStore для MongoDB.
// Уникальность обеспечивается индексом {subject_id, event_kind}.
type MongoDBEventStore struct {
	config     MongoDBEventStoreConfig
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBEventStore создает новый MongoDB Event Store
func NewMongoDBEventStore(ctx context.Context, config MongoDBEventStoreConfig) (*MongoDBEventStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	timeout := time.Duration(config.Timeout) * time.Second
	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(uint64(config.MaxPoolSize)).
		SetMinPoolSize(uint64(config.MinPoolSize)).
		SetTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "subject_id", Value: 1},
				{Key: "event_kind", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDBEventStore{
		config:     config,
		client:     client,
		collection: collection,
	}, nil
}

// Stop закрывает соединение
func (s *MongoDBEventStore) Stop(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

// Name возвращает имя компонента
func (s *MongoDBEventStore) Name() string {
	return "mongodb-event-store"
}

// Type возвращает тип компонента
func (s *MongoDBEventStore) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck проверяет доступность MongoDB
func (s *MongoDBEventStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Append добавляет событие одной вставкой
func (s *MongoDBEventStore) Append(ctx context.Context, event events.Event) error {
	stored, err := NewStoredEvent(event)
	if err != nil {
		return err
	}

	doc := mongoEventDocument{
		SubjectID: stored.SubjectID,
		EventKind: stored.EventKind,
		EventID:   stored.ID,
		EventData: string(stored.EventData),
		Metadata:  stored.Metadata,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Load возвращает события субъекта
func (s *MongoDBEventStore) Load(ctx context.Context, subjectID string) ([]StoredEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "event_kind", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"subject_id": subjectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	var result []StoredEvent
	for cursor.Next(ctx) {
		var doc mongoEventDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		result = append(result, StoredEvent{
			ID:        doc.EventID,
			SubjectID: doc.SubjectID,
			EventKind: doc.EventKind,
			EventData: json.RawMessage(doc.EventData),
			Metadata:  doc.Metadata,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return result, nil
}
