package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

const MaxRating = 5

// 价格区间
var CostRangeLabels = map[string]string{
	"$":    "Under $50",
	"$$":   "$50 - $150",
	"$$$":  "$150 - $300",
	"$$$$": "Over $300",
}

var CostRangeOrder = []string{"$", "$$", "$$$", "$$$$"}

// 可用性筛选键 -> 列名
var AvailabilityColumns = map[string]string{
	"inPrint":     "availability_in_print",
	"digital":     "availability_digital",
	"usedMarket":  "availability_used_market",
	"supplements": "availability_supplements",
}

type Curriculum struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Slug        string `gorm:"uniqueIndex;size:191;not null" json:"slug"`
	Name        string `gorm:"size:191;not null;index" json:"name"`
	Publisher   string `gorm:"size:191;not null;index" json:"publisher"`
	Description string `gorm:"type:text;not null" json:"description"`
	ImageURL    string `gorm:"size:512" json:"imageUrl"`
	Website     string `gorm:"size:512" json:"website"`

	GradeLevelID string      `gorm:"size:36;not null;index" json:"gradeLevelId"`
	GradeLevel   *GradeLevel `gorm:"constraint:OnDelete:RESTRICT" json:"gradeLevel,omitempty"`
	Subjects     []Subject   `gorm:"many2many:curriculum_subjects" json:"subjects"`

	// 目标年龄/年级
	TargetAgeGradeDescription string `gorm:"type:text" json:"targetAgeGradeDescription"`
	TargetAgeGradeRating      int    `gorm:"not null;default:0" json:"targetAgeGradeRating"`

	// 教学理念
	TeachingApproachStyle       string `gorm:"size:100;index" json:"teachingApproachStyle"`
	TeachingApproachDescription string `gorm:"type:text" json:"teachingApproachDescription"`
	TeachingApproachRating      int    `gorm:"not null;default:0" json:"teachingApproachRating"`

	SubjectsCoveredDescription string `gorm:"type:text" json:"subjectsCoveredDescription"`
	SubjectsCoveredRating      int    `gorm:"not null;default:0" json:"subjectsCoveredRating"`

	MaterialsComponents datatypes.JSONSlice[string] `json:"materialsComponents"`
	MaterialsFormat     string                      `gorm:"size:100" json:"materialsFormat"`
	MaterialsRating     int                         `gorm:"not null;default:0" json:"materialsRating"`

	InstructionStyleType        string `gorm:"size:100" json:"instructionStyleType"`
	InstructionStyleDescription string `gorm:"type:text" json:"instructionStyleDescription"`
	InstructionStyleRating      int    `gorm:"not null;default:0" json:"instructionStyleRating"`

	TimeCommitmentDailyMinutes int    `gorm:"not null;default:0" json:"timeCommitmentDailyMinutes"`
	TimeCommitmentWeeklyHours  int    `gorm:"not null;default:0" json:"timeCommitmentWeeklyHours"`
	TimeCommitmentDescription  string `gorm:"type:text" json:"timeCommitmentDescription"`
	TimeCommitmentRating       int    `gorm:"not null;default:0" json:"timeCommitmentRating"`

	CostPriceRange       string  `gorm:"size:8;index" json:"costPriceRange"`
	CostMinPrice         float64 `gorm:"not null;default:0" json:"costMinPrice"`
	CostMaxPrice         float64 `gorm:"not null;default:0" json:"costMaxPrice"`
	CostValueDescription string  `gorm:"type:text" json:"costValueDescription"`
	CostRating           int     `gorm:"not null;default:0" json:"costRating"`

	AvailabilityInPrint     bool `gorm:"not null;default:false" json:"availabilityInPrint"`
	AvailabilityDigital     bool `gorm:"not null;default:false" json:"availabilityDigital"`
	AvailabilityUsedMarket  bool `gorm:"not null;default:false" json:"availabilityUsedMarket"`
	AvailabilitySupplements bool `gorm:"not null;default:false" json:"availabilitySupplements"`
	AvailabilityRating      int  `gorm:"not null;default:0" json:"availabilityRating"`

	Strengths  datatypes.JSONSlice[string] `json:"strengths"`
	Weaknesses datatypes.JSONSlice[string] `json:"weaknesses"`
	BestFor    datatypes.JSONSlice[string] `json:"bestFor"`

	// OverallRating 只由分项评分推导
	OverallRating float64 `gorm:"not null;default:0;index" json:"overallRating"`
	ReviewCount   int     `gorm:"not null;default:0" json:"reviewCount"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Curriculum) TableName() string { return "curricula" }

// CategoryRatings 各评审类别的评分，0 表示未提供
func (c *Curriculum) CategoryRatings() []int {
	return []int{
		c.TargetAgeGradeRating,
		c.TeachingApproachRating,
		c.SubjectsCoveredRating,
		c.MaterialsRating,
		c.InstructionStyleRating,
		c.TimeCommitmentRating,
		c.CostRating,
		c.AvailabilityRating,
	}
}

// RatingCategories 与 CategoryRatings 顺序一致的列名
var RatingCategories = []string{
	"target_age_grade_rating",
	"teaching_approach_rating",
	"subjects_covered_rating",
	"materials_rating",
	"instruction_style_rating",
	"time_commitment_rating",
	"cost_rating",
	"availability_rating",
}

// OverallFromRatings 非零分项的算术平均；无分项时为 0
func OverallFromRatings(ratings []int) float64 {
	sum, n := 0, 0
	for _, r := range ratings {
		if r > 0 {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func (c *Curriculum) RecomputeOverall() {
	c.OverallRating = OverallFromRatings(c.CategoryRatings())
}

// NormalizeLists 保证数组字段序列化为 [] 而非 null
func (c *Curriculum) NormalizeLists() {
	for _, p := range []*datatypes.JSONSlice[string]{&c.MaterialsComponents, &c.Strengths, &c.Weaknesses, &c.BestFor} {
		if *p == nil {
			*p = datatypes.JSONSlice[string]{}
		}
	}
	if c.Subjects == nil {
		c.Subjects = []Subject{}
	}
}

// CurriculumFilter 列表与搜索共享的筛选条件
type CurriculumFilter struct {
	GradeLevelIDs      []string
	SubjectIDs         []string
	TeachingApproach   string   // 子串匹配
	TeachingApproaches []string // 精确匹配（搜索页多选）
	CostRanges         []string
	MinRating          *float64
	MaxRating          *float64
	Availability       []string
	MinAge             *int
	MaxAge             *int
}

type ListQuery struct {
	Filter   CurriculumFilter
	Search   string
	SortBy   string
	SortDesc bool
	Offset   int
	Limit    int
}

type SearchQuery struct {
	Filter   CurriculumFilter
	Q        string
	SortBy   string
	SortDesc bool
	Offset   int
	Limit    int
}

type Facets struct {
	GradeLevels        []ValueCount     `json:"gradeLevels"`
	Subjects           []ValueCount     `json:"subjects"`
	TeachingApproaches []ValueCount     `json:"teachingApproaches"`
	CostRanges         []ValueCount     `json:"costRanges"`
	Availability       map[string]int64 `json:"availability"`
}

// SitemapEntry sitemap 只需 slug 与更新时间
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}

type CurriculumRepository interface {
	// Transaction 内的 repo 共享同一事务
	Transaction(ctx context.Context, fn func(tx CurriculumRepository) error) error

	List(ctx context.Context, q ListQuery) ([]Curriculum, int64, error)
	Search(ctx context.Context, q SearchQuery) ([]Curriculum, int64, error)
	FindBySlug(ctx context.Context, slug string) (*Curriculum, error)
	FindByID(ctx context.Context, id string) (*Curriculum, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)

	Create(ctx context.Context, c *Curriculum) error
	Update(ctx context.Context, c *Curriculum) error
	ReplaceSubjects(ctx context.Context, curriculumID string, subjectIDs []string) error
	Delete(ctx context.Context, id string) (bool, error)

	SuggestCurricula(ctx context.Context, q string, limit int) ([]Curriculum, error)
	Facets(ctx context.Context, q string) (*Facets, error)
	SitemapEntries(ctx context.Context) ([]SitemapEntry, error)
	// Each 分批遍历全部课程（运维脚本使用）
	Each(ctx context.Context, batch int, fn func(c *Curriculum) error) error
}
