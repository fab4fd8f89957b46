package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Document struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title      string         `gorm:"type:varchar(255);not null"`
	Content    string         `gorm:"type:text"`
	Source     string         `gorm:"type:varchar(512)"`
	Collection string         `gorm:"type:varchar(128);not null;default:'default';index"`
	IndexedAt  *time.Time     `gorm:"default:null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (Document) TableName() string {
	return "documents"
}
