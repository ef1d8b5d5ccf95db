package domain

import (
	"context"
	"time"
)

const MaxPersonalNotes = 1000

type SavedCurriculum struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	UserID        string      `gorm:"size:36;not null;uniqueIndex:idx_saved_user_curriculum" json:"userId"`
	CurriculumID  string      `gorm:"size:36;not null;uniqueIndex:idx_saved_user_curriculum;index" json:"curriculumId"`
	PersonalNotes string      `gorm:"type:text" json:"personalNotes"`
	SavedAt       time.Time   `gorm:"not null" json:"savedAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	User          *User       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Curriculum    *Curriculum `gorm:"constraint:OnDelete:CASCADE" json:"curriculum,omitempty"`
}

func (SavedCurriculum) TableName() string { return "saved_curricula" }

type SavedRepository interface {
	// Upsert 按 (userID, curriculumID) 唯一；已存在则更新备注
	Upsert(ctx context.Context, userID, curriculumID, notes string) (*SavedCurriculum, bool, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]SavedCurriculum, int64, error)
	FindByPair(ctx context.Context, userID, curriculumID string) (*SavedCurriculum, error)
	// DeleteOwned 仅删除属于 userID 的记录
	DeleteOwned(ctx context.Context, id, userID string) (bool, error)
}
