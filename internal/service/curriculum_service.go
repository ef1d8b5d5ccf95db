package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/core/storage"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/validate"
	"shelf-taught/pkg/utils"
)

// MaxSlugAttempts 数字后缀尝试次数，用尽后退回时间戳后缀
const MaxSlugAttempts = 100

// 列表允许的排序字段
var listSorts = map[string]bool{
	"name":          true,
	"publisher":     true,
	"overallRating": true,
	"reviewCount":   true,
	"createdAt":     true,
	"updatedAt":     true,
}

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type ListParams struct {
	Filter    domain.CurriculumFilter
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// CurriculumDetail 携带可选的收藏状态（仅在带有效令牌时返回）
type CurriculumDetail struct {
	*domain.Curriculum
	IsSaved *bool   `json:"isSaved,omitempty"`
	SavedID *string `json:"savedId,omitempty"`
}

type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type CurriculumService struct {
	curricula domain.CurriculumRepository
	taxonomy  domain.TaxonomyRepository
	saved     domain.SavedRepository
	images    storage.ImageStore
	inv       invalidator
	log       *zap.Logger

	maxUpload int64
	now       func() time.Time
}

func NewCurriculumService(
	curricula domain.CurriculumRepository,
	taxonomy domain.TaxonomyRepository,
	saved domain.SavedRepository,
	images storage.ImageStore,
	c *cache.Cache,
	maxUploadMB int,
	log *zap.Logger,
) *CurriculumService {
	if images == nil {
		images = storage.Unconfigured{}
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 5
	}
	log = log.Named("curriculum")
	return &CurriculumService{
		curricula: curricula,
		taxonomy:  taxonomy,
		saved:     saved,
		images:    images,
		inv:       invalidator{cache: c, log: log},
		log:       log,
		maxUpload: int64(maxUploadMB) << 20,
		now:       time.Now,
	}
}

func (s *CurriculumService) List(ctx context.Context, p ListParams) (*Paged[domain.Curriculum], error) {
	page, limit, offset := PageWindow(p.Page, p.Limit)
	sortBy := p.SortBy
	if !listSorts[sortBy] {
		sortBy = "overallRating"
	}
	items, total, err := s.curricula.List(ctx, domain.ListQuery{
		Filter:   p.Filter,
		Search:   p.Search,
		SortBy:   sortBy,
		SortDesc: sortDesc(p.SortOrder),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	return &Paged[domain.Curriculum]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// Get 先按 slug 查找，再按 id 查找
func (s *CurriculumService) Get(ctx context.Context, slugOrID, userID string) (*CurriculumDetail, error) {
	c, err := s.curricula.FindBySlug(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		if c, err = s.curricula.FindByID(ctx, slugOrID); err != nil {
			return nil, err
		}
	}
	if c == nil {
		return nil, apperr.NotFound("Curriculum not found")
	}
	out := &CurriculumDetail{Curriculum: c}
	if userID != "" {
		sv, err := s.saved.FindByPair(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}
		saved := sv != nil
		out.IsSaved = &saved
		if saved {
			out.SavedID = &sv.ID
		}
	}
	return out, nil
}

func (s *CurriculumService) Create(ctx context.Context, in CurriculumInput) (*domain.Curriculum, error) {
	if err := validate.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, &in.GradeLevelID, &in.SubjectIDs); err != nil {
		return nil, err
	}
	c := &domain.Curriculum{ID: utils.NewID()}
	in.apply(c)
	c.RecomputeOverall()

	err := s.curricula.Transaction(ctx, func(tx domain.CurriculumRepository) error {
		slug, err := s.uniqueSlug(ctx, tx, c.Name, c.Publisher, "")
		if err != nil {
			return err
		}
		c.Slug = slug
		if err := tx.Create(ctx, c); err != nil {
			return err
		}
		return tx.ReplaceSubjects(ctx, c.ID, in.SubjectIDs)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("curriculum created", zap.String("id", c.ID), zap.String("slug", c.Slug))
	s.inv.invalidate(ctx, cacheCategories, cacheFilters, cacheAnalytics, cacheSitemap)
	return s.reload(ctx, c.ID)
}

func (s *CurriculumService) Update(ctx context.Context, id string, p CurriculumPatch) (*domain.Curriculum, error) {
	if err := validate.Struct(&p); err != nil {
		return nil, err
	}
	c, err := s.curricula.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("Curriculum not found")
	}
	if err := s.checkRefs(ctx, p.GradeLevelID, p.SubjectIDs); err != nil {
		return nil, err
	}
	identityChanged := p.apply(c)
	c.RecomputeOverall()
	c.Subjects = nil

	err = s.curricula.Transaction(ctx, func(tx domain.CurriculumRepository) error {
		if identityChanged {
			slug, err := s.uniqueSlug(ctx, tx, c.Name, c.Publisher, c.ID)
			if err != nil {
				return err
			}
			c.Slug = slug
		}
		if err := tx.Update(ctx, c); err != nil {
			return err
		}
		if p.SubjectIDs != nil {
			return tx.ReplaceSubjects(ctx, c.ID, *p.SubjectIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.inv.invalidate(ctx, cacheCategories, cacheFilters, cacheAnalytics, cacheSitemap)
	return s.reload(ctx, c.ID)
}

func (s *CurriculumService) Delete(ctx context.Context, id string) error {
	c, err := s.curricula.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.NotFound("Curriculum not found")
	}
	err = s.curricula.Transaction(ctx, func(tx domain.CurriculumRepository) error {
		ok, err := tx.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("Curriculum not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("curriculum deleted", zap.String("id", id), zap.String("slug", c.Slug))
	s.inv.invalidate(ctx, cacheCategories, cacheFilters, cacheAnalytics, cacheSitemap)
	return nil
}

// UploadImage 写入对象存储后更新 imageUrl；旧图片尽力删除
func (s *CurriculumService) UploadImage(ctx context.Context, id string, up Upload) (*domain.Curriculum, error) {
	ext, ok := imageTypes[strings.ToLower(up.ContentType)]
	if !ok {
		return nil, apperr.Validation("Unsupported image type", "image must be jpeg, png, webp or gif")
	}
	if up.Size > s.maxUpload {
		return nil, apperr.Validation("Image too large", fmt.Sprintf("image must be at most %d MB", s.maxUpload>>20))
	}
	c, err := s.curricula.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("Curriculum not found")
	}

	key := path.Join("curricula", c.ID, utils.NewID()+ext)
	url, err := s.images.Put(ctx, key, up.ContentType, io.LimitReader(up.Body, s.maxUpload+1))
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil, apperr.Internal("Image storage is not configured", err)
		}
		return nil, apperr.Internal("Image upload failed", err)
	}
	old := c.ImageURL
	c.ImageURL = url
	c.Subjects = nil
	if err := s.curricula.Update(ctx, c); err != nil {
		_ = s.images.Delete(ctx, key)
		return nil, err
	}
	if oldKey, ok := s.images.KeyOf(old); ok {
		if err := s.images.Delete(ctx, oldKey); err != nil {
			s.log.Warn("delete previous image failed", zap.String("key", oldKey), zap.Error(err))
		}
	}
	return s.reload(ctx, c.ID)
}

// Recompute 重新计算全部课程的综合评分并补齐缺失的 slug
func (s *CurriculumService) Recompute(ctx context.Context) (updated int, err error) {
	var dirty []domain.Curriculum
	err = s.curricula.Each(ctx, 200, func(c *domain.Curriculum) error {
		before, slug := c.OverallRating, c.Slug
		c.RecomputeOverall()
		if c.OverallRating != before || slug == "" {
			dirty = append(dirty, *c)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for i := range dirty {
		c := &dirty[i]
		if c.Slug == "" {
			if c.Slug, err = s.uniqueSlug(ctx, s.curricula, c.Name, c.Publisher, c.ID); err != nil {
				return updated, err
			}
		}
		if err := s.curricula.Update(ctx, c); err != nil {
			return updated, err
		}
		updated++
	}
	if updated > 0 {
		s.inv.invalidate(ctx, cacheCategories, cacheFilters, cacheAnalytics, cacheSitemap)
	}
	return updated, nil
}

func (s *CurriculumService) reload(ctx context.Context, id string) (*domain.Curriculum, error) {
	c, err := s.curricula.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("Curriculum not found")
	}
	return c, nil
}

// checkRefs 年级与学科必须全部存在
func (s *CurriculumService) checkRefs(ctx context.Context, gradeLevelID *string, subjectIDs *[]string) error {
	if gradeLevelID != nil {
		ok, err := s.taxonomy.GradeLevelExists(ctx, *gradeLevelID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("Invalid grade level", "gradeLevelId does not exist")
		}
	}
	if subjectIDs != nil {
		ids := uniqueIDs(*subjectIDs)
		*subjectIDs = ids
		if len(ids) == 0 {
			return nil
		}
		n, err := s.taxonomy.CountSubjects(ctx, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return apperr.Validation("Invalid subjects", "one or more subjectIds do not exist")
		}
	}
	return nil
}

// uniqueSlug base, base-1, base-2 ... 超过 MaxSlugAttempts 次后使用时间戳后缀
func (s *CurriculumService) uniqueSlug(ctx context.Context, repo domain.CurriculumRepository, name, publisher, excludeID string) (string, error) {
	base := utils.Slugify(name, publisher)
	if base == "" {
		base = "curriculum"
	}
	candidate := base
	for i := 1; i <= MaxSlugAttempts; i++ {
		taken, err := repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%d", base, s.now().UnixMilli()), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
