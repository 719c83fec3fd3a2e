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

// ResearchRepo handles MongoDB operations for research definitions
type ResearchRepo interface {
	GetByID(ctx context.Context, id string) (*model.Research, error)
	Upsert(ctx context.Context, research *model.Research) error
	List(ctx context.Context) ([]*model.Research, error)
}

type researchRepo struct {
	collection *mongo.Collection
}

// NewResearchRepo creates a research repository on the researches collection
func NewResearchRepo(db *mongo.Database) ResearchRepo {
	return newResearchRepo(db.Collection("researches"))
}

func newResearchRepo(collection *mongo.Collection) *researchRepo {
	return &researchRepo{collection: collection}
}

// GetByID returns nil, nil when no research has that id
func (r *researchRepo) GetByID(ctx context.Context, id string) (*model.Research, error) {
	var research model.Research
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&research)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find research %s: %w", id, err)
	}
	return &research, nil
}

// Upsert validates and stores the research, replacing any previous revision
func (r *researchRepo) Upsert(ctx context.Context, research *model.Research) error {
	if err := research.Validate(); err != nil {
		return err
	}
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": research.ID},
		research,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert research %s: %w", research.ID, err)
	}
	return nil
}

func (r *researchRepo) List(ctx context.Context) ([]*model.Research, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var researches []*model.Research
	if err := cursor.All(ctx, &researches); err != nil {
		return nil, err
	}
	return researches, nil
}
