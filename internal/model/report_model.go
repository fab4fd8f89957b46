package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Report struct {
	Id                   uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Query                string         `gorm:"type:text;not null"`
	Collection           string         `gorm:"type:varchar(128)"`
	Status               string         `gorm:"type:varchar(32);not null;index"` // run state: done or failed
	Text                 string         `gorm:"type:text"`
	DocumentsTotal       int            `gorm:"default:0"`
	DocumentsInformative int            `gorm:"default:0"`
	DocumentsSkipped     int            `gorm:"default:0"`
	DocumentsFailed      int            `gorm:"default:0"`
	ShortCircuited       bool           `gorm:"default:false"`
	ErrorKind            string         `gorm:"type:varchar(64)"`
	ErrorMessage         string         `gorm:"type:text"`
	FailedState          string         `gorm:"type:varchar(32)"`
	Outcomes             datatypes.JSON `gorm:"type:jsonb"`
	StartedAt            time.Time
	FinishedAt           time.Time
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

func (Report) TableName() string {
	return "reports"
}
