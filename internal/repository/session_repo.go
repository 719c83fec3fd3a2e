package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// SessionRepo archives finished sessions so their answer stacks outlive the Redis TTL
type SessionRepo interface {
	Save(ctx context.Context, snapshot *model.SessionSnapshot) error
	GetByID(ctx context.Context, id string) (*model.SessionSnapshot, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a session archive on the sessions collection
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return newSessionRepo(db.Collection("sessions"))
}

func newSessionRepo(collection *mongo.Collection) *sessionRepo {
	return &sessionRepo{collection: collection}
}

func (r *sessionRepo) Save(ctx context.Context, snapshot *model.SessionSnapshot) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"sessionId": snapshot.SessionID},
		snapshot,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", snapshot.SessionID, err)
	}
	return nil
}

// GetByID returns nil, nil for sessions never archived
func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.SessionSnapshot, error) {
	var snapshot model.SessionSnapshot
	err := r.collection.FindOne(ctx, bson.M{"sessionId": id}).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session %s: %w", id, err)
	}
	return &snapshot, nil
}
