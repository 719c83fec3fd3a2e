package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lorancew-l/proto-testing-sub000/internal/cache"
	"github.com/lorancew-l/proto-testing-sub000/internal/engine"
	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/repository"
)

// ErrResearchNotFound is returned when no stored research has the requested id
var ErrResearchNotFound = errors.New("research not found")

// ResearchService loads and compiles research definitions
type ResearchService struct {
	repo     repository.ResearchRepo
	compiled cache.CompiledCache
	loads    singleflight.Group
	logger   *zap.Logger
}

// NewResearchService creates a new research service
func NewResearchService(repo repository.ResearchRepo, compiled cache.CompiledCache, logger *zap.Logger) *ResearchService {
	return &ResearchService{
		repo:     repo,
		compiled: compiled,
		logger:   logger.Named("research"),
	}
}

// Compile returns the compiled form of r, reusing an earlier compilation of the same revision
func (s *ResearchService) Compile(r *model.Research) (*engine.Compiled, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil research", model.ErrDefinition)
	}
	key := r.Key()
	if c, ok := s.compiled.Get(key); ok {
		return c, nil
	}

	c, err := engine.CompileResearch(r)
	if err != nil {
		return nil, err
	}
	s.compiled.Add(key, c)
	s.logger.Info("research compiled",
		zap.String("research", key),
		zap.Int("questions", c.Len()),
		zap.Int("dangling_edges", len(c.Dangling())),
	)
	return c, nil
}

// Load fetches research id from the repository and compiles it.
// Concurrent loads of the same id share one repository round trip.
func (s *ResearchService) Load(ctx context.Context, id string) (*engine.Compiled, error) {
	v, err, _ := s.loads.Do(id, func() (interface{}, error) {
		r, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get research: %w", err)
		}
		if r == nil {
			return nil, fmt.Errorf("%w: %s", ErrResearchNotFound, id)
		}
		return s.Compile(r)
	})
	if err != nil {
		return nil, err
	}
	return v.(*engine.Compiled), nil
}

// Save stores a research definition
func (s *ResearchService) Save(ctx context.Context, r *model.Research) error {
	return s.repo.Upsert(ctx, r)
}
