package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"gorm.io/gorm"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
)

type AnalyticsRepo struct{ db *gorm.DB }

func NewAnalyticsRepo(db *gorm.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

func (r *AnalyticsRepo) count(ctx context.Context, model any, where string, args ...any) (int64, error) {
	tx := r.db.WithContext(ctx).Model(model)
	if where != "" {
		tx = tx.Where(where, args...)
	}
	var n int64
	err := tx.Count(&n).Error
	return n, err
}

func (r *AnalyticsRepo) Totals(ctx context.Context) (domain.Totals, error) {
	var t domain.Totals
	var err error
	steps := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&t.Users, &domain.User{}, "", nil},
		{&t.Admins, &domain.User{}, "role = ?", []any{domain.RoleAdmin}},
		{&t.Curricula, &domain.Curriculum{}, "", nil},
		{&t.Subjects, &domain.Subject{}, "", nil},
		{&t.GradeLevels, &domain.GradeLevel{}, "", nil},
		{&t.Saves, &domain.SavedCurriculum{}, "", nil},
	}
	for _, s := range steps {
		if *s.dst, err = r.count(ctx, s.model, s.where, s.args...); err != nil {
			return t, apperr.DB("totals", err)
		}
	}
	return t, nil
}

func (r *AnalyticsRepo) TopRated(ctx context.Context, limit int) ([]domain.RankedCurriculum, error) {
	out := make([]domain.RankedCurriculum, 0, limit)
	err := r.db.WithContext(ctx).Model(&domain.Curriculum{}).
		Select("id, slug, name, publisher, overall_rating, review_count").
		Where("overall_rating > 0").
		Order("overall_rating DESC").Order("review_count DESC").Order("name").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, apperr.DB("top rated", err)
	}
	return out, nil
}

func (r *AnalyticsRepo) MostSaved(ctx context.Context, limit int) ([]domain.RankedCurriculum, error) {
	out := make([]domain.RankedCurriculum, 0, limit)
	err := r.db.WithContext(ctx).Raw(`SELECT c.id, c.slug, c.name, c.publisher, c.overall_rating, c.review_count, COUNT(s.id) AS save_count
FROM curricula c JOIN saved_curricula s ON s.curriculum_id = c.id
GROUP BY c.id, c.slug, c.name, c.publisher, c.overall_rating, c.review_count
ORDER BY COUNT(s.id) DESC, c.name
LIMIT ?`, limit).Scan(&out).Error
	if err != nil {
		return nil, apperr.DB("most saved", err)
	}
	return out, nil
}

func (r *AnalyticsRepo) ByGradeLevel(ctx context.Context) ([]domain.ValueCount, error) {
	out := make([]domain.ValueCount, 0)
	err := r.db.WithContext(ctx).Raw(`SELECT g.id AS value, g.name AS label, COUNT(c.id) AS count
FROM grade_levels g LEFT JOIN curricula c ON c.grade_level_id = g.id
GROUP BY g.id, g.name, g.sort_order
ORDER BY g.sort_order, g.name`).Scan(&out).Error
	if err != nil {
		return nil, apperr.DB("grade level distribution", err)
	}
	return out, nil
}

func (r *AnalyticsRepo) BySubject(ctx context.Context) ([]domain.ValueCount, error) {
	out := make([]domain.ValueCount, 0)
	err := r.db.WithContext(ctx).Raw(`SELECT s.id AS value, s.name AS label, COUNT(cs.curriculum_id) AS count
FROM subjects s LEFT JOIN curriculum_subjects cs ON cs.subject_id = s.id
GROUP BY s.id, s.name
ORDER BY COUNT(cs.curriculum_id) DESC, s.name`).Scan(&out).Error
	if err != nil {
		return nil, apperr.DB("subject distribution", err)
	}
	return out, nil
}

func (r *AnalyticsRepo) Activity(ctx context.Context, since time.Time) (domain.Activity, error) {
	a := domain.Activity{Since: since}
	var err error
	if a.NewUsers, err = r.count(ctx, &domain.User{}, "created_at >= ?", since); err != nil {
		return a, apperr.DB("activity", err)
	}
	if a.NewCurricula, err = r.count(ctx, &domain.Curriculum{}, "created_at >= ?", since); err != nil {
		return a, apperr.DB("activity", err)
	}
	if a.NewSaves, err = r.count(ctx, &domain.SavedCurriculum{}, "saved_at >= ?", since); err != nil {
		return a, apperr.DB("activity", err)
	}
	if a.UpdatedCurricula, err = r.count(ctx, &domain.Curriculum{}, "updated_at >= ? AND updated_at > created_at", since); err != nil {
		return a, apperr.DB("activity", err)
	}
	return a, nil
}

func (r *AnalyticsRepo) RatingAverages(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64, len(domain.RatingCategories))
	for _, col := range domain.RatingCategories {
		var avg sql.NullFloat64
		row := r.db.WithContext(ctx).Model(&domain.Curriculum{}).
			Select("AVG(" + col + ")").
			Where(col + " > 0").
			Row()
		if err := row.Scan(&avg); err != nil {
			return nil, apperr.DB("rating averages", err)
		}
		out[categoryKey(col)] = avg.Float64
	}
	return out, nil
}

// categoryKey target_age_grade_rating -> targetAgeGrade
func categoryKey(col string) string {
	parts := strings.Split(strings.TrimSuffix(col, "_rating"), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
