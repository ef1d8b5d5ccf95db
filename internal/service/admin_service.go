package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/domain"
)

const (
	analyticsTopN       = 5
	analyticsWindowDays = 30
)

type Analytics struct {
	Totals         domain.Totals             `json:"totals"`
	TopRated       []domain.RankedCurriculum `json:"topRated"`
	MostSaved      []domain.RankedCurriculum `json:"mostSaved"`
	ByGradeLevel   []domain.ValueCount       `json:"byGradeLevel"`
	BySubject      []domain.ValueCount       `json:"bySubject"`
	RecentActivity domain.Activity           `json:"recentActivity"`
	RatingAverages map[string]float64        `json:"ratingAverages"`
	GeneratedAt    time.Time                 `json:"generatedAt"`
}

type UserListParams struct {
	Search string
	Role   string
	Page   int
	Limit  int
}

type RoleInput struct {
	Role string `json:"role" validate:"required"`
}

// ModerationItem 待审核内容；目前没有用户生成内容，队列恒为空
type ModerationItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

type ModerationQueue interface {
	Pending(ctx context.Context) ([]ModerationItem, error)
}

type EmptyModerationQueue struct{}

func (EmptyModerationQueue) Pending(context.Context) ([]ModerationItem, error) {
	return []ModerationItem{}, nil
}

type ModerationSummary struct {
	Items   []ModerationItem `json:"items"`
	Total   int              `json:"total"`
	Message string           `json:"message"`
}

type AdminService struct {
	users      domain.UserRepository
	analytics  domain.AnalyticsRepository
	moderation ModerationQueue
	cache      *cache.Cache
	ttl        time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewAdminService(users domain.UserRepository, analytics domain.AnalyticsRepository, moderation ModerationQueue, c *cache.Cache, ttl time.Duration, log *zap.Logger) *AdminService {
	if moderation == nil {
		moderation = EmptyModerationQueue{}
	}
	return &AdminService{
		users:      users,
		analytics:  analytics,
		moderation: moderation,
		cache:      c,
		ttl:        ttlOr(ttl, time.Minute),
		log:        log.Named("admin"),
		now:        time.Now,
	}
}

// Analytics 各项统计并发查询
func (s *AdminService) Analytics(ctx context.Context) (*Analytics, error) {
	return cache.GetOrLoadJSON(s.cache, ctx, cacheAnalytics+"dashboard", s.ttl, s.loadAnalytics)
}

func (s *AdminService) loadAnalytics(ctx context.Context) (*Analytics, error) {
	now := s.now()
	out := &Analytics{GeneratedAt: now}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Totals, err = s.analytics.Totals(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TopRated, err = s.analytics.TopRated(gctx, analyticsTopN)
		return err
	})
	g.Go(func() (err error) {
		out.MostSaved, err = s.analytics.MostSaved(gctx, analyticsTopN)
		return err
	})
	g.Go(func() (err error) {
		out.ByGradeLevel, err = s.analytics.ByGradeLevel(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.BySubject, err = s.analytics.BySubject(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.RecentActivity, err = s.analytics.Activity(gctx, now.AddDate(0, 0, -analyticsWindowDays))
		return err
	})
	g.Go(func() (err error) {
		out.RatingAverages, err = s.analytics.RatingAverages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AdminService) Users(ctx context.Context, p UserListParams) (*Paged[domain.User], error) {
	page, limit, offset := PageWindow(p.Page, p.Limit)
	role := strings.ToUpper(strings.TrimSpace(p.Role))
	if role != "" && !domain.ValidRole(role) {
		return nil, apperr.Validation("Invalid role filter", "role must be USER or ADMIN")
	}
	items, total, err := s.users.List(ctx, domain.UserQuery{Search: p.Search, Role: role, Offset: offset, Limit: limit})
	if err != nil {
		return nil, err
	}
	return &Paged[domain.User]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// UpdateRole 管理员不能修改自己的角色
func (s *AdminService) UpdateRole(ctx context.Context, actorID, userID, role string) (*domain.User, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if !domain.ValidRole(role) {
		return nil, apperr.Validation("Invalid role", "role must be USER or ADMIN")
	}
	if actorID == userID {
		return nil, apperr.Validation("You cannot change your own role")
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("User not found")
	}
	s.log.Info("user role changed", zap.String("actor", actorID), zap.String("user_id", userID), zap.String("role", role))
	s.invalidate(ctx)
	return u, nil
}

// DeleteUser 管理员不能删除自己
func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return apperr.Validation("You cannot delete your own account")
	}
	ok, err := s.users.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("User not found")
	}
	s.log.Info("user deleted", zap.String("actor", actorID), zap.String("user_id", userID))
	s.invalidate(ctx)
	return nil
}

func (s *AdminService) Moderation(ctx context.Context) (*ModerationSummary, error) {
	items, err := s.moderation.Pending(ctx)
	if err != nil {
		return nil, err
	}
	return &ModerationSummary{Items: items, Total: len(items), Message: "No content awaiting moderation"}, nil
}

func (s *AdminService) invalidate(ctx context.Context) {
	invalidator{cache: s.cache, log: s.log}.invalidate(ctx, cacheAnalytics)
}
