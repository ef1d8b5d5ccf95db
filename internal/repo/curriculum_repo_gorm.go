package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
)

// 排序键 -> 列名；popularity 与 relevance 使用评分代理排序
var sortColumns = map[string]string{
	"name":          "name",
	"publisher":     "publisher",
	"overallRating": "overall_rating",
	"reviewCount":   "review_count",
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"cost":          "cost_min_price",
}

type CurriculumRepo struct{ db *gorm.DB }

func NewCurriculumRepo(db *gorm.DB) *CurriculumRepo { return &CurriculumRepo{db: db} }

func (r *CurriculumRepo) Transaction(ctx context.Context, fn func(tx domain.CurriculumRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CurriculumRepo{db: tx})
	})
}

func (r *CurriculumRepo) withDetails(tx *gorm.DB) *gorm.DB {
	return tx.Preload("GradeLevel").Preload("Subjects", func(db *gorm.DB) *gorm.DB {
		return db.Order("subjects.name")
	})
}

func order(tx *gorm.DB, sortBy string, desc bool) *gorm.DB {
	col, ok := sortColumns[sortBy]
	if !ok {
		// 代理顺序恒为降序，相关度模式下再在内存中重排
		if sortBy == "popularity" {
			return tx.Order(orderBy("overall_rating", desc)).Order(orderBy("review_count", desc)).Order("id")
		}
		return tx.Order(orderBy("overall_rating", true)).Order(orderBy("review_count", true)).Order("id")
	}
	return tx.Order(orderBy(col, desc)).Order("id")
}

func (r *CurriculumRepo) List(ctx context.Context, q domain.ListQuery) ([]domain.Curriculum, int64, error) {
	base := func() *gorm.DB {
		tx := applyFilter(r.db.WithContext(ctx).Model(&domain.Curriculum{}), q.Filter)
		if s := strings.TrimSpace(q.Search); s != "" {
			tx = listSearch(tx, s)
		}
		return tx
	}
	return r.page(base, q.SortBy, q.SortDesc, q.Offset, q.Limit)
}

func (r *CurriculumRepo) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Curriculum, int64, error) {
	base := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&domain.Curriculum{})
		return applyFilter(textMatch(tx, q.Q), q.Filter)
	}
	return r.page(base, q.SortBy, q.SortDesc, q.Offset, q.Limit)
}

func (r *CurriculumRepo) page(base func() *gorm.DB, sortBy string, desc bool, offset, limit int) ([]domain.Curriculum, int64, error) {
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, apperr.DB("count curricula", err)
	}
	items := make([]domain.Curriculum, 0, limit)
	if total == 0 {
		return items, 0, nil
	}
	tx := r.withDetails(order(base(), sortBy, desc)).Offset(offset).Limit(limit)
	if err := tx.Find(&items).Error; err != nil {
		return nil, 0, apperr.DB("list curricula", err)
	}
	for i := range items {
		items[i].NormalizeLists()
	}
	return items, total, nil
}

func (r *CurriculumRepo) findOne(ctx context.Context, col, v string) (*domain.Curriculum, error) {
	var c domain.Curriculum
	err := r.withDetails(r.db.WithContext(ctx)).First(&c, col+" = ?", v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DB("find curriculum", err)
	}
	c.NormalizeLists()
	return &c, nil
}

func (r *CurriculumRepo) FindBySlug(ctx context.Context, slug string) (*domain.Curriculum, error) {
	return r.findOne(ctx, "slug", slug)
}

func (r *CurriculumRepo) FindByID(ctx context.Context, id string) (*domain.Curriculum, error) {
	return r.findOne(ctx, "id", id)
}

func (r *CurriculumRepo) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Curriculum{}).Where("slug = ?", slug)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return false, apperr.DB("check slug", err)
	}
	return n > 0, nil
}

// Create 只写课程本身，学科关联由 ReplaceSubjects 写入
func (r *CurriculumRepo) Create(ctx context.Context, c *domain.Curriculum) error {
	c.NormalizeLists()
	return apperr.DB("create curriculum", r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error)
}

func (r *CurriculumRepo) Update(ctx context.Context, c *domain.Curriculum) error {
	c.NormalizeLists()
	return apperr.DB("update curriculum", r.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error)
}

func (r *CurriculumRepo) ReplaceSubjects(ctx context.Context, curriculumID string, subjectIDs []string) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("curriculum_id = ?", curriculumID).Delete(&domain.CurriculumSubject{}).Error; err != nil {
		return apperr.DB("clear subjects", err)
	}
	ids := uniq(subjectIDs)
	if len(ids) == 0 {
		return nil
	}
	links := make([]domain.CurriculumSubject, 0, len(ids))
	for _, id := range ids {
		links = append(links, domain.CurriculumSubject{CurriculumID: curriculumID, SubjectID: id})
	}
	return apperr.DB("link subjects", tx.Create(&links).Error)
}

func (r *CurriculumRepo) Delete(ctx context.Context, id string) (bool, error) {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("curriculum_id = ?", id).Delete(&domain.CurriculumSubject{}).Error; err != nil {
		return false, apperr.DB("delete curriculum", err)
	}
	if err := tx.Where("curriculum_id = ?", id).Delete(&domain.SavedCurriculum{}).Error; err != nil {
		return false, apperr.DB("delete curriculum", err)
	}
	res := tx.Where("id = ?", id).Delete(&domain.Curriculum{})
	if res.Error != nil {
		return false, apperr.DB("delete curriculum", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *CurriculumRepo) SuggestCurricula(ctx context.Context, q string, limit int) ([]domain.Curriculum, error) {
	out := make([]domain.Curriculum, 0, limit)
	err := r.db.WithContext(ctx).
		Select("id", "slug", "name", "publisher", "overall_rating", "review_count").
		Where("(LOWER(name)"+likeOp+" OR LOWER(name)"+likeOp+" OR LOWER(publisher)"+likeOp+")",
			likePrefix(q), "% "+likePrefix(q), likeContains(q)).
		Order(orderBy("overall_rating", true)).Order("name").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, apperr.DB("suggest curricula", err)
	}
	return out, nil
}

type facetRow struct {
	Value string
	Count int64
}

// Facets 按可选文本条件分组计数
func (r *CurriculumRepo) Facets(ctx context.Context, q string) (*domain.Facets, error) {
	q = strings.TrimSpace(q)
	scoped := func() *gorm.DB {
		tx := r.db.WithContext(ctx).Model(&domain.Curriculum{})
		if q != "" {
			tx = textMatch(tx, q)
		}
		return tx
	}
	out := &domain.Facets{Availability: map[string]int64{}}

	var grades []domain.GradeLevel
	if err := r.db.WithContext(ctx).Order("sort_order").Order("name").Find(&grades).Error; err != nil {
		return nil, apperr.DB("facets", err)
	}
	var rows []facetRow
	if err := scoped().Select("grade_level_id AS value, COUNT(*) AS count").Group("grade_level_id").Scan(&rows).Error; err != nil {
		return nil, apperr.DB("facets", err)
	}
	byGrade := toCounts(rows)
	out.GradeLevels = make([]domain.ValueCount, 0, len(grades))
	for _, g := range grades {
		out.GradeLevels = append(out.GradeLevels, domain.ValueCount{Value: g.ID, Label: g.Name, Count: byGrade[g.ID]})
	}

	var subjects []domain.Subject
	if err := r.db.WithContext(ctx).Order("name").Find(&subjects).Error; err != nil {
		return nil, apperr.DB("facets", err)
	}
	rows = rows[:0]
	err := r.db.WithContext(ctx).Table("curriculum_subjects").
		Select("subject_id AS value, COUNT(*) AS count").
		Where("curriculum_id IN (?)", scoped().Select("id")).
		Group("subject_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.DB("facets", err)
	}
	bySubject := toCounts(rows)
	out.Subjects = make([]domain.ValueCount, 0, len(subjects))
	for _, s := range subjects {
		out.Subjects = append(out.Subjects, domain.ValueCount{Value: s.ID, Label: s.Name, Count: bySubject[s.ID]})
	}

	rows = rows[:0]
	err = scoped().Select("teaching_approach_style AS value, COUNT(*) AS count").
		Where("teaching_approach_style <> ''").
		Group("teaching_approach_style").
		Order("COUNT(*) DESC").Order("teaching_approach_style").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.DB("facets", err)
	}
	out.TeachingApproaches = make([]domain.ValueCount, 0, len(rows))
	for _, row := range rows {
		out.TeachingApproaches = append(out.TeachingApproaches, domain.ValueCount{Value: row.Value, Label: row.Value, Count: row.Count})
	}

	rows = rows[:0]
	if err := scoped().Select("cost_price_range AS value, COUNT(*) AS count").Where("cost_price_range <> ''").Group("cost_price_range").Scan(&rows).Error; err != nil {
		return nil, apperr.DB("facets", err)
	}
	out.CostRanges = costRangeCounts(toCounts(rows))

	var avail struct {
		InPrint     int64
		Digital     int64
		UsedMarket  int64
		Supplements int64
	}
	err = scoped().Select(
		"COALESCE(SUM(CASE WHEN availability_in_print THEN 1 ELSE 0 END), 0) AS in_print, " +
			"COALESCE(SUM(CASE WHEN availability_digital THEN 1 ELSE 0 END), 0) AS digital, " +
			"COALESCE(SUM(CASE WHEN availability_used_market THEN 1 ELSE 0 END), 0) AS used_market, " +
			"COALESCE(SUM(CASE WHEN availability_supplements THEN 1 ELSE 0 END), 0) AS supplements",
	).Scan(&avail).Error
	if err != nil {
		return nil, apperr.DB("facets", err)
	}
	out.Availability["inPrint"] = avail.InPrint
	out.Availability["digital"] = avail.Digital
	out.Availability["usedMarket"] = avail.UsedMarket
	out.Availability["supplements"] = avail.Supplements
	return out, nil
}

func toCounts(rows []facetRow) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Value] = r.Count
	}
	return m
}

// costRangeCounts 按固定顺序输出全部价格区间
func costRangeCounts(m map[string]int64) []domain.ValueCount {
	out := make([]domain.ValueCount, 0, len(domain.CostRangeOrder))
	for _, k := range domain.CostRangeOrder {
		out = append(out, domain.ValueCount{Value: k, Label: domain.CostRangeLabels[k], Count: m[k]})
	}
	return out
}

func (r *CurriculumRepo) SitemapEntries(ctx context.Context) ([]domain.SitemapEntry, error) {
	var out []domain.SitemapEntry
	err := r.db.WithContext(ctx).Model(&domain.Curriculum{}).
		Select("slug", "updated_at").
		Order("updated_at desc").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.DB("sitemap", err)
	}
	return out, nil
}

func (r *CurriculumRepo) Each(ctx context.Context, batch int, fn func(c *domain.Curriculum) error) error {
	if batch <= 0 {
		batch = 100
	}
	var rows []domain.Curriculum
	res := r.db.WithContext(ctx).FindInBatches(&rows, batch, func(_ *gorm.DB, _ int) error {
		for i := range rows {
			if err := fn(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return apperr.DB("iterate curricula", res.Error)
}
