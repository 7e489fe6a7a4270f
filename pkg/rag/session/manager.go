package session

import (
	"context"
	"time"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/internal/repository/unitofwork"
	"ai-paperchat-be/pkg/rag/fault"

	"github.com/google/uuid"
)

// Manager handles chat session rows: ownership checks and the implicit
// create on first contact.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// VerifyChatSession validates session ownership. A session owned by someone
// else reports the same not-found as a missing one.
func (m *Manager) VerifyChatSession(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, sessionId uuid.UUID) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fault.New(fault.KindNotFound, "session not found or access denied")
	}
	return session, nil
}

// EnsureChatSession returns the owned session row, creating it on first
// contact. A row under the same id owned by another user reports the same
// not-found as a missing one instead of being taken over.
func (m *Manager) EnsureChatSession(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, sessionId uuid.UUID, title string) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
	)
	if err != nil {
		return nil, err
	}
	if session != nil {
		if session.UserId != userId {
			return nil, fault.New(fault.KindNotFound, "session not found or access denied")
		}
		return session, nil
	}

	session = &entity.ChatSession{
		Id:        sessionId,
		UserId:    userId,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateTitle updates session title
func (m *Manager) UpdateTitle(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession, title string, now time.Time) error {
	session.Title = title
	session.UpdatedAt = &now
	return uow.ChatSessionRepository().Update(ctx, session)
}
