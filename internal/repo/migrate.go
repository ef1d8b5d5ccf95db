package repo

import (
	"gorm.io/gorm"

	"shelf-taught/internal/domain"
)

// AutoMigrate 建表；多对多关联使用自定义 join 表
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&domain.Curriculum{}, "Subjects", &domain.CurriculumSubject{}); err != nil {
		return err
	}
	return db.AutoMigrate(
		&domain.User{},
		&domain.GradeLevel{},
		&domain.Subject{},
		&domain.Curriculum{},
		&domain.CurriculumSubject{},
		&domain.SavedCurriculum{},
	)
}
