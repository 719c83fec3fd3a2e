package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lorancew-l/proto-testing-sub000/internal/cache"
	"github.com/lorancew-l/proto-testing-sub000/internal/engine"
	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/repository"
	"github.com/lorancew-l/proto-testing-sub000/internal/telemetry"
)

// ErrSessionNotFound is returned for unknown or no longer live sessions
var ErrSessionNotFound = errors.New("session not found")

// CreateSessionRequest starts a session from a stored research or an inline bootstrap definition
type CreateSessionRequest struct {
	ResearchID string          `json:"researchId,omitempty"`
	Research   json.RawMessage `json:"research,omitempty"`
	AppName    string          `json:"appName,omitempty"`
}

// SessionService hosts one engine per live respondent session
type SessionService struct {
	research    *ResearchService
	sessions    cache.SessionCache
	pending     cache.PendingCache
	archive     repository.SessionRepo
	sender      telemetry.Sender
	broadcaster Broadcaster
	logger      *zap.Logger
	appName     string
	engineOpts  []engine.Option

	mu      sync.RWMutex
	engines map[string]*engine.Engine
}

// NewSessionService creates a new session service
func NewSessionService(
	research *ResearchService,
	sessions cache.SessionCache,
	pending cache.PendingCache,
	archive repository.SessionRepo,
	sender telemetry.Sender,
	logger *zap.Logger,
	appName string,
) *SessionService {
	return &SessionService{
		research: research,
		sessions: sessions,
		pending:  pending,
		archive:  archive,
		sender:   sender,
		logger:   logger.Named("session"),
		appName:  appName,
		engines:  make(map[string]*engine.Engine),
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetEngineOptions appends options applied to every engine created afterwards
func (s *SessionService) SetEngineOptions(opts ...engine.Option) {
	s.engineOpts = append(s.engineOpts, opts...)
}

// CreateSession resolves the research, starts an engine and returns the first view
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (model.SessionSnapshot, error) {
	compiled, err := s.resolve(ctx, req)
	if err != nil {
		return model.SessionSnapshot{}, err
	}

	appName := req.AppName
	if appName == "" {
		appName = s.appName
	}
	id := uuid.NewString()
	opts := append([]engine.Option{
		engine.WithSessionID(id),
		engine.WithAppName(appName),
		engine.WithLogger(s.logger),
	}, s.engineOpts...)
	eng := engine.New(compiled, s.sender, opts...)

	s.mu.Lock()
	s.engines[id] = eng
	s.mu.Unlock()

	snap, err := eng.Start(ctx)
	if err != nil {
		s.forget(id)
		return snap, err
	}
	s.logger.Info("session started",
		zap.String("session_id", id),
		zap.String("research", compiled.Research().Key()),
		zap.String("app", appName),
	)
	s.publish(ctx, eng, snap)
	return snap, nil
}

func (s *SessionService) resolve(ctx context.Context, req CreateSessionRequest) (*engine.Compiled, error) {
	if len(req.Research) > 0 {
		r, err := model.ParseBootstrap(req.Research)
		if err != nil {
			return nil, err
		}
		return s.research.Compile(r)
	}
	if req.ResearchID == "" {
		return nil, fmt.Errorf("%w: research or researchId is required", model.ErrDefinition)
	}
	return s.research.Load(ctx, req.ResearchID)
}

// Dispatch applies an intent to a live session and publishes the new view
func (s *SessionService) Dispatch(ctx context.Context, sessionID string, req model.IntentRequest) (model.SessionSnapshot, error) {
	in, err := engine.FromRequest(req)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	eng := s.engine(sessionID)
	if eng == nil {
		return model.SessionSnapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	snap, err := eng.Dispatch(ctx, in)
	if err != nil {
		return snap, err
	}
	s.publish(ctx, eng, snap)
	return snap, nil
}

// GetSession returns the live view, falling back to the cached then archived snapshot
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (model.SessionSnapshot, error) {
	if eng := s.engine(sessionID); eng != nil {
		return eng.Snapshot(), nil
	}

	snap, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("failed to get session: %w", err)
	}
	if snap != nil {
		return *snap, nil
	}

	snap, err = s.archive.GetByID(ctx, sessionID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	if snap == nil {
		return model.SessionSnapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return *snap, nil
}

// PendingEvents lists the undelivered telemetry events of a session
func (s *SessionService) PendingEvents(ctx context.Context, sessionID string) ([]model.PendingEvent, error) {
	if eng := s.engine(sessionID); eng != nil {
		return eng.Pending(), nil
	}
	return s.pending.List(ctx, sessionID)
}

// Live is the number of sessions held in memory
func (s *SessionService) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.engines)
}

func (s *SessionService) engine(id string) *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engines[id]
}

func (s *SessionService) forget(id string) {
	s.mu.Lock()
	delete(s.engines, id)
	s.mu.Unlock()
}

// publish stores the view and pushes it to subscribers.
// Storage failures are logged; the respondent's flow never depends on them.
func (s *SessionService) publish(ctx context.Context, eng *engine.Engine, snap model.SessionSnapshot) {
	log := s.logger.With(zap.String("session_id", snap.SessionID))

	if err := s.sessions.Set(ctx, &snap); err != nil {
		log.Warn("failed to cache session", zap.Error(err))
	}
	if err := s.pending.Replace(ctx, snap.SessionID, eng.Pending()); err != nil {
		log.Warn("failed to mirror pending events", zap.Error(err))
	}

	if snap.Finished && snap.PendingEvents == 0 {
		if err := s.archive.Save(ctx, &snap); err != nil {
			log.Warn("failed to archive session", zap.Error(err))
		} else {
			s.forget(snap.SessionID)
			log.Info("session finished", zap.Int("answers", len(snap.AnswerStack)))
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToSession(snap.SessionID, MsgSessionView, snap)
	}
}
