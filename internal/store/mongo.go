package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore implements Store on the users and messages collections
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	messages *mongo.Collection
}

type userDoc struct {
	Username  string    `bson:"username"`
	Fold      string    `bson:"username_fold"`
	Password  string    `bson:"password"`
	Age       *int      `bson:"age,omitempty"`
	Gender    *string   `bson:"gender,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// messageDoc keys on an ObjectID so that messages sharing a millisecond
// timestamp still sort in insertion order
type messageDoc struct {
	OID        bson.ObjectID `bson:"_id,omitempty"`
	ID         string        `bson:"id"`
	Sender     string        `bson:"sender"`
	Receiver   string        `bson:"receiver"`
	Message    string        `bson:"message"`
	Translated *string       `bson:"translated_message,omitempty"`
	Timestamp  time.Time     `bson:"timestamp"`
}

// NewMongoStore connects to uri, selects dbName and ensures indexes
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		messages: db.Collection("messages"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username_fold", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create users fold index: %w", err)
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "sender", Value: 1},
			{Key: "receiver", Value: 1},
			{Key: "timestamp", Value: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		Username:     d.Username,
		PasswordHash: d.Password,
		Age:          d.Age,
		Gender:       d.Gender,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

func (s *MongoStore) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		Username:  u.Username,
		Fold:      domain.FoldUsername(u.Username),
		Password:  u.PasswordHash,
		Age:       u.Age,
		Gender:    u.Gender,
		CreatedAt: u.CreatedAt.UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) findOneUser(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) (*domain.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *MongoStore) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.findOneUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) FindUserFold(ctx context.Context, q string) (*domain.User, error) {
	u, err := s.GetUser(ctx, q)
	if !errors.Is(err, domain.ErrNotFound) {
		return u, err
	}

	filter := bson.M{"username_fold": domain.FoldUsername(q)}
	return s.findOneUser(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "username", Value: 1}}))
}

func (s *MongoStore) ListOtherUsernames(ctx context.Context, exclude string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"username": 1}).
		SetSort(bson.D{{Key: "username", Value: 1}})

	cur, err := s.users.Find(ctx, bson.M{"username": bson.M{"$ne": exclude}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Username)
	}
	return names, nil
}

func (s *MongoStore) SaveMessage(ctx context.Context, m *domain.Message) error {
	_, err := s.messages.InsertOne(ctx, messageDoc{
		ID:         m.ID,
		Sender:     m.Sender,
		Receiver:   m.Receiver,
		Message:    m.Body,
		Translated: m.Translated,
		Timestamp:  m.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *MongoStore) Conversation(ctx context.Context, a, b string) ([]domain.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender": a, "receiver": b},
		bson.M{"sender": b, "receiver": a},
	}}
	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: 1},
		{Key: "_id", Value: 1},
	})

	cur, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, domain.Message{
			ID:         d.ID,
			Sender:     d.Sender,
			Receiver:   d.Receiver,
			Body:       d.Message,
			Translated: d.Translated,
			Timestamp:  d.Timestamp.UTC(),
		})
	}
	return msgs, nil
}
