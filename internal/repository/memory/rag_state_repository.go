package memory

import (
	"time"

	"ai-paperchat-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// RAGStateRepository holds per-session RAG toggles in process memory.
// Records never expire; a restart simply falls back to the disabled default.
type RAGStateRepository struct {
	cache *cache.Cache
}

func NewRAGStateRepository() *RAGStateRepository {
	c := cache.New(cache.NoExpiration, 10*time.Minute)
	return &RAGStateRepository{
		cache: c,
	}
}

func (r *RAGStateRepository) Save(state *entity.RAGState) {
	r.cache.Set(state.SessionID.String(), state, cache.NoExpiration)
}

func (r *RAGStateRepository) Get(sessionID string) (*entity.RAGState, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*entity.RAGState), true
	}
	return nil, false
}
