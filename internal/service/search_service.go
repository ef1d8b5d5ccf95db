package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/domain"
)

const (
	DefaultSuggestLimit = 8
	MaxSuggestLimit     = 20
)

// 搜索允许的排序方式，默认 relevance
var searchSorts = map[string]bool{
	"relevance":     true,
	"name":          true,
	"publisher":     true,
	"overallRating": true,
	"createdAt":     true,
	"popularity":    true,
	"cost":          true,
}

type SearchParams struct {
	Q         string
	Filter    domain.CurriculumFilter
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

type ScoredCurriculum struct {
	domain.Curriculum
	RelevanceScore  float64 `json:"relevanceScore"`
	PopularityScore float64 `json:"popularityScore"`
}

type SearchResult struct {
	Paged[ScoredCurriculum]
	Query  string
	SortBy string
}

type Suggestion struct {
	Type    string `json:"type"` // curriculum | subject | teachingApproach
	ID      string `json:"id,omitempty"`
	Slug    string `json:"slug,omitempty"`
	Text    string `json:"text"`
	Subtext string `json:"subtext,omitempty"`
}

type SearchService struct {
	curricula domain.CurriculumRepository
	taxonomy  domain.TaxonomyRepository
	cache     *cache.Cache
	filterTTL time.Duration
	log       *zap.Logger
}

func NewSearchService(curricula domain.CurriculumRepository, taxonomy domain.TaxonomyRepository, c *cache.Cache, filterTTL time.Duration, log *zap.Logger) *SearchService {
	return &SearchService{
		curricula: curricula,
		taxonomy:  taxonomy,
		cache:     c,
		filterTTL: ttlOr(filterTTL, 5*time.Minute),
		log:       log.Named("search"),
	}
}

// Search 数据库按代理顺序分页，相关度只在当前页内重排
func (s *SearchService) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	q := strings.TrimSpace(p.Q)
	if q == "" {
		return nil, apperr.Validation("Search query is required", "q must not be empty")
	}
	sortBy := p.SortBy
	if !searchSorts[sortBy] {
		sortBy = "relevance"
	}
	desc := sortDesc(p.SortOrder)
	page, limit, offset := PageWindow(p.Page, p.Limit)

	rows, total, err := s.curricula.Search(ctx, domain.SearchQuery{
		Filter:   p.Filter,
		Q:        q,
		SortBy:   sortBy,
		SortDesc: desc,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	items := make([]ScoredCurriculum, len(rows))
	for i := range rows {
		items[i] = ScoredCurriculum{
			Curriculum:      rows[i],
			RelevanceScore:  Relevance(&rows[i], q),
			PopularityScore: Popularity(&rows[i]),
		}
	}
	if sortBy == "relevance" {
		sort.SliceStable(items, func(i, j int) bool {
			if desc {
				return items[i].RelevanceScore > items[j].RelevanceScore
			}
			return items[i].RelevanceScore < items[j].RelevanceScore
		})
	}
	s.log.Debug("search", zap.String("q", q), zap.String("sort", sortBy), zap.Int64("total", total))
	return &SearchResult{
		Paged:  Paged[ScoredCurriculum]{Items: items, Page: page, Limit: limit, Total: total},
		Query:  q,
		SortBy: sortBy,
	}, nil
}

// Suggest 三路并发查询后按类型合并
func (s *SearchService) Suggest(ctx context.Context, q string, limit int) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Suggestion{}, nil
	}
	switch {
	case limit <= 0:
		limit = DefaultSuggestLimit
	case limit > MaxSuggestLimit:
		limit = MaxSuggestLimit
	}

	var (
		curricula  []domain.Curriculum
		subjects   []domain.Subject
		approaches []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		curricula, err = s.curricula.SuggestCurricula(gctx, q, limit)
		return err
	})
	g.Go(func() (err error) {
		subjects, err = s.taxonomy.SuggestSubjects(gctx, q, limit)
		return err
	})
	g.Go(func() (err error) {
		approaches, err = s.taxonomy.SuggestTeachingApproaches(gctx, q, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, limit)
	for _, c := range curricula {
		out = append(out, Suggestion{Type: "curriculum", ID: c.ID, Slug: c.Slug, Text: c.Name, Subtext: c.Publisher})
	}
	for _, sub := range subjects {
		out = append(out, Suggestion{Type: "subject", ID: sub.ID, Text: sub.Name})
	}
	for _, a := range approaches {
		out = append(out, Suggestion{Type: "teachingApproach", Text: a})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Filters 分面计数，按查询词缓存
func (s *SearchService) Filters(ctx context.Context, q string) (*domain.Facets, error) {
	key := cacheFilters + strings.ToLower(strings.TrimSpace(q))
	f, err := cache.GetOrLoadJSON(s.cache, ctx, key, s.filterTTL, func(ctx context.Context) (*domain.Facets, error) {
		return s.curricula.Facets(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
