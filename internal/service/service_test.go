package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/core/storage"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/repo"
	"shelf-taught/internal/testkit"
)

type env struct {
	db        *gorm.DB
	curricula *CurriculumService
	search    *SearchService
	saved     *SavedService
	catalog   *CatalogService
	admin     *AdminService
	sitemap   *SitemapService

	grade   *domain.GradeLevel
	math    *domain.Subject
	reading *domain.Subject
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testkit.NewDB(t)
	c := cache.Disabled()
	log := zap.NewNop()
	curriculumRepo := repo.NewCurriculumRepo(db)
	taxonomyRepo := repo.NewTaxonomyRepo(db)
	savedRepo := repo.NewSavedRepo(db)
	e := &env{
		db:        db,
		curricula: NewCurriculumService(curriculumRepo, taxonomyRepo, savedRepo, nil, c, 1, log),
		search:    NewSearchService(curriculumRepo, taxonomyRepo, c, 0, log),
		saved:     NewSavedService(savedRepo, curriculumRepo, c, log),
		catalog:   NewCatalogService(taxonomyRepo, c, 0, log),
		admin:     NewAdminService(repo.NewUserRepo(db), repo.NewAnalyticsRepo(db), nil, c, 0, log),
		sitemap:   NewSitemapService(curriculumRepo, "https://shelftaught.test/", c, 0),
	}
	e.grade = testkit.GradeLevel(t, db, "Elementary", 5, 10, 1)
	e.math = testkit.Subject(t, db, "Mathematics")
	e.reading = testkit.Subject(t, db, "Reading")
	return e
}

func (e *env) input(name, publisher string) CurriculumInput {
	return CurriculumInput{
		Name:         name,
		Publisher:    publisher,
		Description:  "A complete homeschool program for " + name,
		GradeLevelID: e.grade.ID,
		SubjectIDs:   []string{e.math.ID},
	}
}

func appErr(t *testing.T, err error) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected *apperr.Error, got %T", err)
	return ae
}

func TestCurriculumService_CreateComputesOverallRating(t *testing.T) {
	e := newEnv(t)
	in := e.input("Math-U-See", "Demme Learning")
	in.TeachingApproachRating = 4
	in.MaterialsRating = 5
	in.CostRating = 3

	c, err := e.curricula.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 4.0, c.OverallRating)
	assert.Equal(t, "math-u-see-demme-learning", c.Slug)
	require.Len(t, c.Subjects, 1)
	require.NotNil(t, c.GradeLevel)

	in = e.input("Unrated", "Nobody")
	c, err = e.curricula.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, c.OverallRating)
}

func TestCurriculumService_CreateValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ae := appErr(t, func() error { _, err := e.curricula.Create(ctx, CurriculumInput{}); return err }())
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Contains(t, ae.Details, "name is required")
	assert.Contains(t, ae.Details, "gradeLevelId is required")

	in := e.input("Good Name", "Publisher")
	in.GradeLevelID = "missing"
	ae = appErr(t, func() error { _, err := e.curricula.Create(ctx, in); return err }())
	assert.Equal(t, 400, ae.Status)

	in = e.input("Good Name", "Publisher")
	in.SubjectIDs = []string{e.math.ID, "missing"}
	ae = appErr(t, func() error { _, err := e.curricula.Create(ctx, in); return err }())
	assert.Equal(t, apperr.CodeValidation, ae.Code)

	var n int64
	e.db.Model(&domain.Curriculum{}).Count(&n)
	assert.Zero(t, n)
}

func TestCurriculumService_SlugCollisions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.curricula.Create(ctx, e.input("Story of the World", "Well-Trained Mind"))
	require.NoError(t, err)
	b, err := e.curricula.Create(ctx, e.input("Story of the World", "Well-Trained Mind"))
	require.NoError(t, err)
	c, err := e.curricula.Create(ctx, e.input("Story of the World", "Well-Trained Mind"))
	require.NoError(t, err)

	assert.Equal(t, "story-of-the-world-well-trained-mind", a.Slug)
	assert.Equal(t, "story-of-the-world-well-trained-mind-1", b.Slug)
	assert.Equal(t, "story-of-the-world-well-trained-mind-2", c.Slug)
}

// alwaysTaken 让每个候选 slug 都冲突
type alwaysTaken struct {
	domain.CurriculumRepository
	calls int
}

func (r *alwaysTaken) SlugExists(context.Context, string, string) (bool, error) {
	r.calls++
	return true, nil
}

func TestUniqueSlug_FallsBackToTimestamp(t *testing.T) {
	s := &CurriculumService{now: func() time.Time { return time.UnixMilli(1700000000123) }}
	r := &alwaysTaken{}

	slug, err := s.uniqueSlug(context.Background(), r, "Math-U-See", "Demme", "")
	require.NoError(t, err)
	assert.Equal(t, "math-u-see-demme-1700000000123", slug)
	assert.Equal(t, MaxSlugAttempts, r.calls)
}

func TestCurriculumService_UpdatePatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := e.input("Singapore Math", "Marshall Cavendish")
	in.TeachingApproachRating = 4
	in.Strengths = []string{"Bar models"}
	created, err := e.curricula.Create(ctx, in)
	require.NoError(t, err)

	rating := 2
	desc := "Updated description with enough characters"
	updated, err := e.curricula.Update(ctx, created.ID, CurriculumPatch{Description: &desc, CostRating: &rating})
	require.NoError(t, err)
	assert.Equal(t, created.Slug, updated.Slug)
	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, 3.0, updated.OverallRating)
	assert.Equal(t, []string{"Bar models"}, []string(updated.Strengths))
	require.Len(t, updated.Subjects, 1)

	name := "Dimensions Math"
	subjects := []string{e.reading.ID, e.math.ID}
	updated, err = e.curricula.Update(ctx, created.ID, CurriculumPatch{Name: &name, SubjectIDs: &subjects})
	require.NoError(t, err)
	assert.Equal(t, "dimensions-math-marshall-cavendish", updated.Slug)
	assert.Len(t, updated.Subjects, 2)

	_, err = e.curricula.Update(ctx, "missing", CurriculumPatch{Name: &name})
	assert.Equal(t, 404, appErr(t, err).Status)

	bad := 9
	_, err = e.curricula.Update(ctx, created.ID, CurriculumPatch{CostRating: &bad})
	assert.Equal(t, apperr.CodeValidation, appErr(t, err).Code)
}

func TestCurriculumService_GetAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created, err := e.curricula.Create(ctx, e.input("Math-U-See", "Demme Learning"))
	require.NoError(t, err)
	u := testkit.User(t, e.db, "parent@example.com", domain.RoleUser)

	bySlug, err := e.curricula.Get(ctx, created.Slug, "")
	require.NoError(t, err)
	assert.Nil(t, bySlug.IsSaved)

	byID, err := e.curricula.Get(ctx, created.ID, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID.IsSaved)
	assert.False(t, *byID.IsSaved)

	_, _, err = e.saved.Save(ctx, u.ID, SaveInput{CurriculumID: created.ID})
	require.NoError(t, err)
	withSave, err := e.curricula.Get(ctx, created.Slug, u.ID)
	require.NoError(t, err)
	assert.True(t, *withSave.IsSaved)

	require.NoError(t, e.curricula.Delete(ctx, created.ID))
	_, err = e.curricula.Get(ctx, created.Slug, "")
	assert.Equal(t, 404, appErr(t, err).Status)
	assert.Equal(t, 404, appErr(t, e.curricula.Delete(ctx, created.ID)).Status)
}

func TestCurriculumService_ListClampsLimit(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 55; i++ {
		testkit.Curriculum(t, e.db, "Curriculum "+string(rune('A'+i%26))+string(rune('a'+i/26)), "Pub", e.grade, nil, nil)
	}
	page, err := e.curricula.List(context.Background(), ListParams{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Limit)
	assert.Len(t, page.Items, 50)
	assert.EqualValues(t, 55, page.Total)

	page, err = e.curricula.List(context.Background(), ListParams{Page: 2, Limit: 500, SortBy: "bogus"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)

	page, err = e.curricula.List(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, page.Limit)
	assert.Equal(t, 1, page.Page)
}

type memStore struct {
	objects map[string][]byte
	deleted []string
}

func (m *memStore) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[key] = b
	return "https://img.test/" + key, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memStore) KeyOf(url string) (string, bool) {
	if !strings.HasPrefix(url, "https://img.test/") {
		return "", false
	}
	return strings.TrimPrefix(url, "https://img.test/"), true
}

func TestCurriculumService_UploadImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created, err := e.curricula.Create(ctx, e.input("Math-U-See", "Demme Learning"))
	require.NoError(t, err)

	_, err = e.curricula.UploadImage(ctx, created.ID, Upload{ContentType: "text/plain", Size: 10})
	assert.Equal(t, apperr.CodeValidation, appErr(t, err).Code)

	_, err = e.curricula.UploadImage(ctx, created.ID, Upload{ContentType: "image/png", Size: 2 << 20})
	assert.Equal(t, apperr.CodeValidation, appErr(t, err).Code)

	_, err = e.curricula.UploadImage(ctx, created.ID, Upload{ContentType: "image/png", Size: 10, Body: strings.NewReader("png")})
	assert.ErrorIs(t, err, storage.ErrNotConfigured)

	store := &memStore{objects: map[string][]byte{}}
	e.curricula.images = store
	first, err := e.curricula.UploadImage(ctx, created.ID, Upload{ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.ImageURL, "https://img.test/curricula/"+created.ID+"/"))
	assert.True(t, strings.HasSuffix(first.ImageURL, ".png"))
	assert.Len(t, store.objects, 1)

	second, err := e.curricula.UploadImage(ctx, created.ID, Upload{ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("jpg")})
	require.NoError(t, err)
	assert.NotEqual(t, first.ImageURL, second.ImageURL)
	assert.Len(t, store.objects, 1)
	require.Len(t, store.deleted, 1)

	_, err = e.curricula.UploadImage(ctx, "missing", Upload{ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	assert.Equal(t, 404, appErr(t, err).Status)
}

func TestRelevance(t *testing.T) {
	c := &domain.Curriculum{Name: "Math-U-See", Publisher: "Demme Learning"}
	assert.Equal(t, 65.0, Relevance(c, "Math-U-See"))
	assert.Equal(t, 65.0, Relevance(c, "  math-u-see "))
	assert.Equal(t, 40.0, Relevance(c, "math"))
	assert.Zero(t, Relevance(c, "latin"))
	assert.Zero(t, Relevance(c, ""))

	rich := &domain.Curriculum{
		Name:                  "Math-U-See",
		Publisher:             "Math House",
		Description:           "math",
		TeachingApproachStyle: "Mastery math",
		InstructionStyleType:  "Video math",
		Subjects:              []domain.Subject{{Name: "Mathematics"}},
		Strengths:             []string{"Math facts"},
		BestFor:               []string{"math lovers"},
		ReviewCount:           40,
		OverallRating:         5,
	}
	// 25+15+10+8+12+8+20+6+8 = 112, +5 (reviews) = 117, ×1.5
	assert.Equal(t, 175.5, Relevance(rich, "math"))

	late := &domain.Curriculum{Name: "X", Description: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaamath"}
	assert.Equal(t, 2.0, Relevance(late, "math"))
}

func TestPopularity(t *testing.T) {
	assert.Equal(t, 90.0, Popularity(&domain.Curriculum{OverallRating: 4, ReviewCount: 5}))
	assert.Equal(t, 150.0, Popularity(&domain.Curriculum{OverallRating: 5, ReviewCount: 100}))
}

func TestSearchService_Search(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testkit.Curriculum(t, e.db, "Math-U-See", "Demme Learning", e.grade, []*domain.Subject{e.math}, func(c *domain.Curriculum) {
		c.TeachingApproachRating = 3
	})
	testkit.Curriculum(t, e.db, "Beast Academy", "Art of Problem Solving", e.grade, []*domain.Subject{e.math}, func(c *domain.Curriculum) {
		c.Description = "Comic-style math like Math-U-See fans enjoy"
		c.TeachingApproachRating = 5
		c.ReviewCount = 20
	})

	_, err := e.search.Search(ctx, SearchParams{Q: "   "})
	ae := appErr(t, err)
	assert.Equal(t, 400, ae.Status)
	assert.Equal(t, apperr.CodeValidation, ae.Code)

	res, err := e.search.Search(ctx, SearchParams{Q: "zzzz-no-match"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Zero(t, res.Total)

	res, err = e.search.Search(ctx, SearchParams{Q: "Math-U-See"})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "relevance", res.SortBy)
	// 代理顺序把高评分排前，相关度重排后精确匹配在前
	assert.Equal(t, "Math-U-See", res.Items[0].Name)
	assert.GreaterOrEqual(t, res.Items[0].RelevanceScore, 50.0)

	res, err = e.search.Search(ctx, SearchParams{Q: "math", SortBy: "name", SortOrder: "asc", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, res.Limit)
	assert.Equal(t, "Beast Academy", res.Items[0].Name)

	res, err = e.search.Search(ctx, SearchParams{Q: "math", SortBy: "popularity"})
	require.NoError(t, err)
	assert.Equal(t, "Beast Academy", res.Items[0].Name)
	assert.Equal(t, 140.0, res.Items[0].PopularityScore)
}

func TestSearchService_SuggestAndFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testkit.Curriculum(t, e.db, "Math Mammoth", "Taina Maths", e.grade, []*domain.Subject{e.math}, func(c *domain.Curriculum) {
		c.TeachingApproachStyle = "Mastery"
		c.CostPriceRange = "$"
	})

	got, err := e.search.Suggest(ctx, "ma", 0)
	require.NoError(t, err)
	types := map[string]int{}
	for _, s := range got {
		types[s.Type]++
	}
	assert.Equal(t, map[string]int{"curriculum": 1, "subject": 1, "teachingApproach": 1}, types)
	assert.Equal(t, "curriculum", got[0].Type)

	got, err = e.search.Suggest(ctx, "ma", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = e.search.Suggest(ctx, " ", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	facets, err := e.search.Filters(ctx, "mammoth")
	require.NoError(t, err)
	assert.EqualValues(t, 1, facets.CostRanges[0].Count)
	assert.Len(t, facets.GradeLevels, 1)
}

func TestSavedService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := testkit.Curriculum(t, e.db, "Math-U-See", "Demme Learning", e.grade, nil, nil)
	alice := testkit.User(t, e.db, "alice@example.com", domain.RoleUser)
	bob := testkit.User(t, e.db, "bob@example.com", domain.RoleUser)

	first, created, err := e.saved.Save(ctx, alice.ID, SaveInput{CurriculumID: c.ID, PersonalNotes: "start in fall"})
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = e.saved.Save(ctx, alice.ID, SaveInput{CurriculumID: c.ID, PersonalNotes: "start in spring"})
	require.NoError(t, err)
	assert.False(t, created)

	page, err := e.saved.List(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "start in spring", page.Items[0].PersonalNotes)

	long := make([]rune, 1001)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err = e.saved.Save(ctx, alice.ID, SaveInput{CurriculumID: c.ID, PersonalNotes: string(long)})
	assert.Equal(t, apperr.CodeValidation, appErr(t, err).Code)

	_, _, err = e.saved.Save(ctx, alice.ID, SaveInput{CurriculumID: "missing"})
	assert.Equal(t, 404, appErr(t, err).Status)

	assert.Equal(t, 404, appErr(t, e.saved.Remove(ctx, bob.ID, first.ID)).Status)
	status, err := e.saved.Check(ctx, alice.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, status.Saved)
	assert.Equal(t, first.ID, status.SavedID)

	require.NoError(t, e.saved.Remove(ctx, alice.ID, first.ID))
	assert.Equal(t, 404, appErr(t, e.saved.Remove(ctx, alice.ID, first.ID)).Status)
	status, err = e.saved.Check(ctx, alice.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, status.Saved)
}

func TestCatalogService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testkit.Curriculum(t, e.db, "Math-U-See", "Demme Learning", e.grade, []*domain.Subject{e.math}, func(c *domain.Curriculum) {
		c.TeachingApproachStyle = "Mastery"
		c.CostPriceRange = "$$"
	})

	all, err := e.catalog.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all.Subjects, 2)
	assert.Len(t, all.GradeLevels, 1)
	assert.EqualValues(t, 1, all.GradeLevels[0].CurriculumCount)
	assert.Len(t, all.TeachingApproaches, 1)
	assert.Len(t, all.CostRanges, 4)

	costs, err := e.catalog.CostRanges(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, costs[1].Count)
	e.catalog.Changed(ctx)
}

func TestAdminService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := testkit.User(t, e.db, "admin@example.com", domain.RoleAdmin)
	user := testkit.User(t, e.db, "user@example.com", domain.RoleUser)
	testkit.Curriculum(t, e.db, "Math-U-See", "Demme Learning", e.grade, []*domain.Subject{e.math}, func(c *domain.Curriculum) {
		c.CostRating = 4
	})

	_, err := e.admin.UpdateRole(ctx, admin.ID, admin.ID, domain.RoleUser)
	assert.Equal(t, apperr.CodeValidation, appErr(t, err).Code)
	assert.Equal(t, apperr.CodeValidation, appErr(t, e.admin.DeleteUser(ctx, admin.ID, admin.ID)).Code)

	_, err = e.admin.UpdateRole(ctx, admin.ID, user.ID, "OWNER")
	assert.Equal(t, apperr.CodeValidation, appErr(t, err).Code)

	promoted, err := e.admin.UpdateRole(ctx, admin.ID, user.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, promoted.Role)

	page, err := e.admin.Users(ctx, UserListParams{Role: "ADMIN"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	stats, err := e.admin.Analytics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Totals.Users)
	assert.EqualValues(t, 1, stats.Totals.Curricula)
	assert.Len(t, stats.TopRated, 1)
	assert.InDelta(t, 4.0, stats.RatingAverages["cost"], 0.001)
	assert.EqualValues(t, 1, stats.RecentActivity.NewCurricula)

	require.NoError(t, e.admin.DeleteUser(ctx, admin.ID, user.ID))
	assert.Equal(t, 404, appErr(t, e.admin.DeleteUser(ctx, admin.ID, user.ID)).Status)

	mod, err := e.admin.Moderation(ctx)
	require.NoError(t, err)
	assert.Empty(t, mod.Items)
	assert.Zero(t, mod.Total)
}

func TestSitemapService(t *testing.T) {
	e := newEnv(t)
	testkit.Curriculum(t, e.db, "Math-U-See", "Demme Learning", e.grade, nil, nil)

	body, err := e.sitemap.Sitemap(context.Background())
	require.NoError(t, err)
	xml := string(body)
	assert.Contains(t, xml, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	assert.Contains(t, xml, "<loc>https://shelftaught.test/</loc>")
	assert.Contains(t, xml, "<loc>https://shelftaught.test/curriculum/math-u-see-demme-learning</loc>")

	assert.Contains(t, e.sitemap.Robots(), "Sitemap: https://shelftaught.test/sitemap.xml")
}

func TestCurriculumService_Recompute(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	stale := testkit.Curriculum(t, e.db, "Math-U-See", "Demme Learning", e.grade, nil, func(c *domain.Curriculum) {
		c.CostRating = 4
		c.MaterialsRating = 5
	})
	unslugged := testkit.Curriculum(t, e.db, "Beast Academy", "AoPS", e.grade, nil, nil)
	testkit.Curriculum(t, e.db, "Fine", "Pub", e.grade, nil, nil)
	require.NoError(t, e.db.Model(&domain.Curriculum{}).Where("id = ?", stale.ID).UpdateColumn("overall_rating", 1.0).Error)
	require.NoError(t, e.db.Model(&domain.Curriculum{}).Where("id = ?", unslugged.ID).UpdateColumn("slug", "").Error)

	n, err := e.curricula.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := e.curricula.Get(ctx, "beast-academy-aops", "")
	require.NoError(t, err)
	assert.Equal(t, unslugged.ID, got.ID)
	got, err = e.curricula.Get(ctx, stale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 4.5, got.OverallRating)
}
