package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id            uuid.UUID                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID                      `gorm:"type:uuid;not null;index"`
	Role          string                         `gorm:"type:varchar(50);not null"`
	Chat          string                         `gorm:"type:text;not null"`
	// Route stays empty for turns that never routed (unparseable commands).
	Route         string                         `gorm:"type:varchar(50);not null"`
	CitedChunkIds datatypes.JSONSlice[uuid.UUID] `gorm:"column:cited_chunk_ids"`
	Durable       bool                           `gorm:"default:true"`
	Seq           int64                          `gorm:"not null;index"`
	CreatedAt     time.Time                      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time                      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt                 `gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
