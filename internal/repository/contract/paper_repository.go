package contract

import (
	"context"

	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type PaperRepository interface {
	Create(ctx context.Context, paper *entity.Paper) error
	Update(ctx context.Context, paper *entity.Paper) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Paper, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Paper, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// MaxPosition returns the highest attach position inside a session, 0 when
	// the session has no papers yet.
	MaxPosition(ctx context.Context, sessionId uuid.UUID) (int, error)
}
