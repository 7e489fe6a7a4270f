package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Paper struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserId        uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title         string         `gorm:"type:text;not null"`
	SourceType    string         `gorm:"type:varchar(20);not null;default:'text'"`
	Content       string         `gorm:"type:text;not null"`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	Status        string         `gorm:"type:varchar(20);not null;default:'pending';index"`
	FailureReason string         `gorm:"type:text"`
	Attempt       int            `gorm:"default:1"`
	Position      int            `gorm:"not null"` // attach order inside the session
	ChunkCount    int            `gorm:"default:0"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (Paper) TableName() string {
	return "papers"
}
