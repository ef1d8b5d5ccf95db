package domain

import (
	"context"
	"time"
)

type Subject struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name" validate:"required,min=2,max=100"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Subject) TableName() string { return "subjects" }

// GradeLevel 的年龄上下界用于按年龄区间筛选
type GradeLevel struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name" validate:"required,min=2,max=100"`
	Description string    `gorm:"type:text" json:"description"`
	AgeMin      int       `gorm:"not null;default:0" json:"ageMin" validate:"min=0,max=25"`
	AgeMax      int       `gorm:"not null;default:0" json:"ageMax" validate:"min=0,max=25,gtefield=AgeMin"`
	SortOrder   int       `gorm:"not null;default:0" json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (GradeLevel) TableName() string { return "grade_levels" }

// CurriculumSubject 多对多关联，更新时整体替换
type CurriculumSubject struct {
	CurriculumID string    `gorm:"primaryKey;size:36"`
	SubjectID    string    `gorm:"primaryKey;size:36;index"`
	CreatedAt    time.Time `json:"-"`
}

func (CurriculumSubject) TableName() string { return "curriculum_subjects" }

// SubjectCount / GradeLevelCount 带课程数量的分类条目
type SubjectCount struct {
	Subject
	CurriculumCount int64 `json:"curriculumCount"`
}

type GradeLevelCount struct {
	GradeLevel
	CurriculumCount int64 `json:"curriculumCount"`
}

type ValueCount struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
	Count int64  `json:"count"`
}

type TaxonomyRepository interface {
	ListSubjects(ctx context.Context) ([]SubjectCount, error)
	ListGradeLevels(ctx context.Context) ([]GradeLevelCount, error)
	TeachingApproaches(ctx context.Context) ([]ValueCount, error)
	CostRanges(ctx context.Context) ([]ValueCount, error)
	GradeLevelExists(ctx context.Context, id string) (bool, error)
	// CountSubjects 返回 ids 中真实存在的数量
	CountSubjects(ctx context.Context, ids []string) (int64, error)
	SuggestSubjects(ctx context.Context, q string, limit int) ([]Subject, error)
	SuggestTeachingApproaches(ctx context.Context, q string, limit int) ([]string, error)
}
