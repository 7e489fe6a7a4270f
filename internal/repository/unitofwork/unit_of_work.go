package unitofwork

import (
	"context"

	"ai-paperchat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	PaperRepository() contract.PaperRepository
	PaperChunkRepository() contract.PaperChunkRepository
}
