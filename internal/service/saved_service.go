package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/validate"
)

type SaveInput struct {
	CurriculumID  string `json:"curriculumId" validate:"required"`
	PersonalNotes string `json:"personalNotes" validate:"max=1000"`
}

type SavedStatus struct {
	Saved   bool   `json:"saved"`
	SavedID string `json:"savedId,omitempty"`
}

type SavedService struct {
	saved     domain.SavedRepository
	curricula domain.CurriculumRepository
	inv       invalidator
}

func NewSavedService(saved domain.SavedRepository, curricula domain.CurriculumRepository, c *cache.Cache, log *zap.Logger) *SavedService {
	return &SavedService{saved: saved, curricula: curricula, inv: invalidator{cache: c, log: log.Named("saved")}}
}

func (s *SavedService) List(ctx context.Context, userID string, page, limit int) (*Paged[domain.SavedCurriculum], error) {
	page, limit, offset := PageWindow(page, limit)
	items, total, err := s.saved.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &Paged[domain.SavedCurriculum]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Save 同一 (用户, 课程) 重复保存时只更新备注
func (s *SavedService) Save(ctx context.Context, userID string, in SaveInput) (*domain.SavedCurriculum, bool, error) {
	in.PersonalNotes = strings.TrimSpace(in.PersonalNotes)
	if err := validate.Struct(&in); err != nil {
		return nil, false, err
	}
	c, err := s.curricula.FindByID(ctx, in.CurriculumID)
	if err != nil {
		return nil, false, err
	}
	if c == nil {
		return nil, false, apperr.NotFound("Curriculum not found")
	}
	sv, created, err := s.saved.Upsert(ctx, userID, c.ID, in.PersonalNotes)
	if err != nil {
		return nil, false, err
	}
	sv.Curriculum = c
	if created {
		s.inv.invalidate(ctx, cacheAnalytics)
	}
	return sv, created, nil
}

// Remove 不存在与不属于当前用户都返回 404
func (s *SavedService) Remove(ctx context.Context, userID, id string) error {
	ok, err := s.saved.DeleteOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("Saved curriculum not found")
	}
	s.inv.invalidate(ctx, cacheAnalytics)
	return nil
}

func (s *SavedService) Check(ctx context.Context, userID, curriculumID string) (*SavedStatus, error) {
	sv, err := s.saved.FindByPair(ctx, userID, curriculumID)
	if err != nil {
		return nil, err
	}
	if sv == nil {
		return &SavedStatus{}, nil
	}
	return &SavedStatus{Saved: true, SavedID: sv.ID}, nil
}
