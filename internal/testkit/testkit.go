// Package testkit 测试用的内存 SQLite 与数据构造器
package testkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shelf-taught/internal/core/database"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/repo"
	"shelf-taught/pkg/utils"
)

// NewDB 每次调用得到一个独立的内存库，并已完成迁移
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func GradeLevel(t testing.TB, db *gorm.DB, name string, ageMin, ageMax, order int) *domain.GradeLevel {
	t.Helper()
	g := &domain.GradeLevel{ID: utils.NewID(), Name: name, AgeMin: ageMin, AgeMax: ageMax, SortOrder: order}
	require.NoError(t, db.Create(g).Error)
	return g
}

func Subject(t testing.TB, db *gorm.DB, name string) *domain.Subject {
	t.Helper()
	s := &domain.Subject{ID: utils.NewID(), Name: name}
	require.NoError(t, db.Create(s).Error)
	return s
}

func User(t testing.TB, db *gorm.DB, email, role string) *domain.User {
	t.Helper()
	hash, err := utils.HashPasswordCost("Passw0rd!", 4)
	require.NoError(t, err)
	u := &domain.User{ID: utils.NewID(), Email: email, PasswordHash: hash, FirstName: "Test", LastName: "User", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Curriculum 写入课程及学科关联；mut 用于在写入前修改字段
func Curriculum(t testing.TB, db *gorm.DB, name, publisher string, grade *domain.GradeLevel, subjects []*domain.Subject, mut func(c *domain.Curriculum)) *domain.Curriculum {
	t.Helper()
	c := &domain.Curriculum{
		ID:           utils.NewID(),
		Slug:         utils.Slugify(name, publisher),
		Name:         name,
		Publisher:    publisher,
		Description:  name + " by " + publisher,
		GradeLevelID: grade.ID,
	}
	if mut != nil {
		mut(c)
	}
	c.RecomputeOverall()
	r := repo.NewCurriculumRepo(db)
	require.NoError(t, r.Create(t.Context(), c))
	ids := make([]string, 0, len(subjects))
	for _, s := range subjects {
		ids = append(ids, s.ID)
	}
	require.NoError(t, r.ReplaceSubjects(t.Context(), c.ID, ids))
	return c
}

// Backdate 修改 created_at/updated_at
func Backdate(t testing.TB, db *gorm.DB, model any, id string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(model).Where("id = ?", id).UpdateColumns(map[string]any{"created_at": at, "updated_at": at}).Error)
}
