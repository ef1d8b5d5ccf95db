package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/domain"
)

type Categories struct {
	Subjects           []domain.SubjectCount    `json:"subjects"`
	GradeLevels        []domain.GradeLevelCount `json:"gradeLevels"`
	TeachingApproaches []domain.ValueCount      `json:"teachingApproaches"`
	CostRanges         []domain.ValueCount      `json:"costRanges"`
}

// CatalogService 分类数据读多写少，整体走缓存
type CatalogService struct {
	taxonomy domain.TaxonomyRepository
	cache    *cache.Cache
	ttl      time.Duration
	inv      invalidator
}

func NewCatalogService(taxonomy domain.TaxonomyRepository, c *cache.Cache, ttl time.Duration, log *zap.Logger) *CatalogService {
	return &CatalogService{
		taxonomy: taxonomy,
		cache:    c,
		ttl:      ttlOr(ttl, 10*time.Minute),
		inv:      invalidator{cache: c, log: log.Named("catalog")},
	}
}

func (s *CatalogService) All(ctx context.Context) (*Categories, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, cacheCategories+"all", s.ttl, func(ctx context.Context) (*Categories, error) {
		var (
			out Categories
			err error
		)
		if out.Subjects, err = s.taxonomy.ListSubjects(ctx); err != nil {
			return nil, err
		}
		if out.GradeLevels, err = s.taxonomy.ListGradeLevels(ctx); err != nil {
			return nil, err
		}
		if out.TeachingApproaches, err = s.taxonomy.TeachingApproaches(ctx); err != nil {
			return nil, err
		}
		if out.CostRanges, err = s.taxonomy.CostRanges(ctx); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (s *CatalogService) Subjects(ctx context.Context) ([]domain.SubjectCount, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, cacheCategories+"subjects", s.ttl, s.taxonomy.ListSubjects)
}

func (s *CatalogService) GradeLevels(ctx context.Context) ([]domain.GradeLevelCount, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, cacheCategories+"grade-levels", s.ttl, s.taxonomy.ListGradeLevels)
}

func (s *CatalogService) TeachingApproaches(ctx context.Context) ([]domain.ValueCount, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, cacheCategories+"teaching-approaches", s.ttl, s.taxonomy.TeachingApproaches)
}

func (s *CatalogService) CostRanges(ctx context.Context) ([]domain.ValueCount, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, cacheCategories+"cost-ranges", s.ttl, s.taxonomy.CostRanges)
}

// Changed 分类被管理端修改后调用
func (s *CatalogService) Changed(ctx context.Context) {
	s.inv.invalidate(ctx, cacheCategories, cacheFilters, cacheAnalytics)
}
