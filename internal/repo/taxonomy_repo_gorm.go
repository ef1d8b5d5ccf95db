package repo

import (
	"context"

	"gorm.io/gorm"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
)

type TaxonomyRepo struct{ db *gorm.DB }

func NewTaxonomyRepo(db *gorm.DB) *TaxonomyRepo { return &TaxonomyRepo{db: db} }

func (r *TaxonomyRepo) ListSubjects(ctx context.Context) ([]domain.SubjectCount, error) {
	out := make([]domain.SubjectCount, 0)
	err := r.db.WithContext(ctx).Raw(`SELECT s.*, (SELECT COUNT(*) FROM curriculum_subjects cs WHERE cs.subject_id = s.id) AS curriculum_count
FROM subjects s ORDER BY s.name`).Scan(&out).Error
	if err != nil {
		return nil, apperr.DB("list subjects", err)
	}
	return out, nil
}

func (r *TaxonomyRepo) ListGradeLevels(ctx context.Context) ([]domain.GradeLevelCount, error) {
	out := make([]domain.GradeLevelCount, 0)
	err := r.db.WithContext(ctx).Raw(`SELECT g.*, (SELECT COUNT(*) FROM curricula c WHERE c.grade_level_id = g.id) AS curriculum_count
FROM grade_levels g ORDER BY g.sort_order, g.name`).Scan(&out).Error
	if err != nil {
		return nil, apperr.DB("list grade levels", err)
	}
	return out, nil
}

func (r *TaxonomyRepo) TeachingApproaches(ctx context.Context) ([]domain.ValueCount, error) {
	var rows []facetRow
	err := r.db.WithContext(ctx).Model(&domain.Curriculum{}).
		Select("teaching_approach_style AS value, COUNT(*) AS count").
		Where("teaching_approach_style <> ''").
		Group("teaching_approach_style").
		Order("COUNT(*) DESC").Order("teaching_approach_style").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.DB("list teaching approaches", err)
	}
	out := make([]domain.ValueCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ValueCount{Value: row.Value, Label: row.Value, Count: row.Count})
	}
	return out, nil
}

func (r *TaxonomyRepo) CostRanges(ctx context.Context) ([]domain.ValueCount, error) {
	var rows []facetRow
	err := r.db.WithContext(ctx).Model(&domain.Curriculum{}).
		Select("cost_price_range AS value, COUNT(*) AS count").
		Where("cost_price_range <> ''").
		Group("cost_price_range").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.DB("list cost ranges", err)
	}
	return costRangeCounts(toCounts(rows)), nil
}

func (r *TaxonomyRepo) GradeLevelExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.GradeLevel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, apperr.DB("check grade level", err)
	}
	return n > 0, nil
}

func (r *TaxonomyRepo) CountSubjects(ctx context.Context, ids []string) (int64, error) {
	ids = uniq(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Subject{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return 0, apperr.DB("check subjects", err)
	}
	return n, nil
}

func (r *TaxonomyRepo) SuggestSubjects(ctx context.Context, q string, limit int) ([]domain.Subject, error) {
	out := make([]domain.Subject, 0, limit)
	err := r.db.WithContext(ctx).
		Where("LOWER(name)"+likeOp, likeContains(q)).
		Order("name").Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, apperr.DB("suggest subjects", err)
	}
	return out, nil
}

func (r *TaxonomyRepo) SuggestTeachingApproaches(ctx context.Context, q string, limit int) ([]string, error) {
	out := make([]string, 0, limit)
	err := r.db.WithContext(ctx).Model(&domain.Curriculum{}).
		Distinct("teaching_approach_style").
		Where("teaching_approach_style <> '' AND LOWER(teaching_approach_style)"+likeOp, likeContains(q)).
		Order("teaching_approach_style").Limit(limit).
		Pluck("teaching_approach_style", &out).Error
	if err != nil {
		return nil, apperr.DB("suggest teaching approaches", err)
	}
	return out, nil
}
