package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByPaperID struct {
	PaperID uuid.UUID
}

func (s ByPaperID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("paper_id = ?", s.PaperID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}
