package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
	"shelf-taught/pkg/utils"
)

type SavedRepo struct{ db *gorm.DB }

func NewSavedRepo(db *gorm.DB) *SavedRepo { return &SavedRepo{db: db} }

// Upsert 先查后写；并发插入撞上唯一索引时回退为更新
func (r *SavedRepo) Upsert(ctx context.Context, userID, curriculumID, notes string) (*domain.SavedCurriculum, bool, error) {
	existing, err := r.FindByPair(ctx, userID, curriculumID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		now := time.Now()
		s := &domain.SavedCurriculum{
			ID:            utils.NewID(),
			UserID:        userID,
			CurriculumID:  curriculumID,
			PersonalNotes: notes,
			SavedAt:       now,
			UpdatedAt:     now,
		}
		err := r.db.WithContext(ctx).Omit("User", "Curriculum").Create(s).Error
		if err == nil {
			return s, true, nil
		}
		if !apperr.IsDuplicate(err) {
			return nil, false, apperr.DB("save curriculum", err)
		}
		if existing, err = r.FindByPair(ctx, userID, curriculumID); err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, apperr.Conflict("saved item changed concurrently")
		}
	}
	existing.PersonalNotes = notes
	existing.UpdatedAt = time.Now()
	err = r.db.WithContext(ctx).Model(existing).
		Updates(map[string]any{"personal_notes": notes, "updated_at": existing.UpdatedAt}).Error
	if err != nil {
		return nil, false, apperr.DB("update saved curriculum", err)
	}
	return existing, false, nil
}

func (r *SavedRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.SavedCurriculum, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.SavedCurriculum{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, apperr.DB("count saved", err)
	}
	out := make([]domain.SavedCurriculum, 0, limit)
	err := r.db.WithContext(ctx).
		Preload("Curriculum").Preload("Curriculum.GradeLevel").Preload("Curriculum.Subjects").
		Where("user_id = ?", userID).
		Order("saved_at desc").Order("id").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, apperr.DB("list saved", err)
	}
	for i := range out {
		if out[i].Curriculum != nil {
			out[i].Curriculum.NormalizeLists()
		}
	}
	return out, total, nil
}

func (r *SavedRepo) FindByPair(ctx context.Context, userID, curriculumID string) (*domain.SavedCurriculum, error) {
	var s domain.SavedCurriculum
	err := r.db.WithContext(ctx).First(&s, "user_id = ? AND curriculum_id = ?", userID, curriculumID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DB("find saved", err)
	}
	return &s, nil
}

func (r *SavedRepo) DeleteOwned(ctx context.Context, id, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.SavedCurriculum{})
	if res.Error != nil {
		return false, apperr.DB("delete saved", res.Error)
	}
	return res.RowsAffected > 0, nil
}
