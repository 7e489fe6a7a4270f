package service

import (
	"context"

	"ai-paperchat-be/internal/dto"
	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/internal/repository/unitofwork"
	"ai-paperchat-be/pkg/rag/ingest"
	"ai-paperchat-be/pkg/rag/session"
	"ai-paperchat-be/pkg/rag/state"

	"github.com/google/uuid"
)

// IRAGService controls the per-session retrieval toggle and reports the
// composed status view (toggle plus live paper counts).
type IRAGService interface {
	Enable(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.RAGStatusResponse, error)
	Disable(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.RAGStatusResponse, error)
	Status(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.RAGStatusResponse, error)
}

type ragService struct {
	uowFactory     unitofwork.RepositoryFactory
	stateManager   *state.Manager
	tracker        *ingest.Tracker
	sessionManager *session.Manager
}

func NewRAGService(
	uowFactory unitofwork.RepositoryFactory,
	stateManager *state.Manager,
	tracker *ingest.Tracker,
) IRAGService {
	return &ragService{
		uowFactory:     uowFactory,
		stateManager:   stateManager,
		tracker:        tracker,
		sessionManager: session.NewManager(),
	}
}

func (s *ragService) Enable(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.RAGStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.sessionManager.VerifyChatSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	st := s.stateManager.Enable(sessionId, userId)
	return s.composeStatus(ctx, uow, sessionId, st), nil
}

func (s *ragService) Disable(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.RAGStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.sessionManager.VerifyChatSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	st := s.stateManager.Disable(sessionId)
	return s.composeStatus(ctx, uow, sessionId, st), nil
}

func (s *ragService) Status(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.RAGStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.sessionManager.VerifyChatSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	st := s.stateManager.Status(sessionId)
	return s.composeStatus(ctx, uow, sessionId, st), nil
}

// composeStatus joins the toggle with the tracker's counts. The enabling
// user's name is cosmetic, a failed lookup leaves it empty.
func (s *ragService) composeStatus(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, st *entity.RAGState) *dto.RAGStatusResponse {
	total, ready := s.tracker.Counts(sessionId)

	resp := &dto.RAGStatusResponse{
		IsRagEnabled:    st.Enabled,
		EnabledBy:       st.EnabledBy,
		RagEnabledAt:    st.EnabledAt,
		TotalPapers:     total,
		ProcessedPapers: ready,
	}
	if st.EnabledBy != nil {
		if user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: *st.EnabledBy}); err == nil && user != nil {
			resp.EnabledByName = user.FullName
		}
	}
	return resp
}
