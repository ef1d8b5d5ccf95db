// Package seed 开发与演示用的初始数据；可重复执行。
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/pkg/utils"
)

type Report struct {
	GradeLevels int
	Subjects    int
	Curricula   int
}

var gradeLevels = []domain.GradeLevel{
	{Name: "Preschool", Description: "Early learning, ages 3-5", AgeMin: 3, AgeMax: 5, SortOrder: 1},
	{Name: "Elementary", Description: "Grades K-5", AgeMin: 5, AgeMax: 11, SortOrder: 2},
	{Name: "Middle School", Description: "Grades 6-8", AgeMin: 11, AgeMax: 14, SortOrder: 3},
	{Name: "High School", Description: "Grades 9-12", AgeMin: 14, AgeMax: 18, SortOrder: 4},
	{Name: "All Ages", Description: "Family-style and multi-level programs", AgeMin: 3, AgeMax: 18, SortOrder: 5},
}

var subjects = []domain.Subject{
	{Name: "Mathematics", Description: "Arithmetic through calculus"},
	{Name: "Reading", Description: "Phonics, fluency and literature"},
	{Name: "Writing", Description: "Composition, grammar and spelling"},
	{Name: "Science", Description: "Life, earth and physical sciences"},
	{Name: "History", Description: "World and national history"},
	{Name: "Geography", Description: "Maps, cultures and places"},
	{Name: "Foreign Language", Description: "Modern and classical languages"},
	{Name: "Art", Description: "Drawing, painting and art appreciation"},
	{Name: "Music", Description: "Theory, appreciation and instrument"},
}

type sample struct {
	grade    string
	subjects []string
	in       service.CurriculumInput
}

var curricula = []sample{
	{
		grade:    "Elementary",
		subjects: []string{"Mathematics"},
		in: service.CurriculumInput{
			Name:                        "Math-U-See",
			Publisher:                   "Demme Learning",
			Description:                 "Mastery-based math program using manipulatives and video lessons.",
			Website:                     "https://www.mathusee.com",
			TeachingApproachStyle:       "Mastery",
			TeachingApproachDescription: "Concepts are taught one at a time with manipulatives until mastered.",
			TeachingApproachRating:      5,
			MaterialsComponents:         []string{"Instruction manual", "Student workbook", "Manipulative blocks", "Video lessons"},
			MaterialsFormat:             "Print + video",
			MaterialsRating:             4,
			InstructionStyleType:        "Parent-led",
			InstructionStyleRating:      4,
			TimeCommitmentDailyMinutes:  30,
			TimeCommitmentWeeklyHours:   3,
			TimeCommitmentRating:        4,
			CostPriceRange:              "$$",
			CostMinPrice:                60,
			CostMaxPrice:                150,
			CostRating:                  4,
			AvailabilityInPrint:         true,
			AvailabilityDigital:         true,
			AvailabilityUsedMarket:      true,
			AvailabilityRating:          5,
			Strengths:                   []string{"Hands-on", "Strong conceptual foundation"},
			Weaknesses:                  []string{"Slower pace"},
			BestFor:                     []string{"Visual learners", "Kinesthetic learners"},
			ReviewCount:                 42,
		},
	},
	{
		grade:    "Elementary",
		subjects: []string{"Mathematics"},
		in: service.CurriculumInput{
			Name:                        "Singapore Math Primary Mathematics",
			Publisher:                   "Singapore Math Inc",
			Description:                 "Concrete-pictorial-abstract approach to elementary mathematics.",
			TeachingApproachStyle:       "Spiral",
			TeachingApproachDescription: "Bar modelling and mental math build problem solving.",
			TeachingApproachRating:      4,
			MaterialsFormat:             "Print",
			MaterialsRating:             4,
			InstructionStyleType:        "Parent-led",
			InstructionStyleRating:      3,
			CostPriceRange:              "$",
			CostMinPrice:                30,
			CostMaxPrice:                50,
			CostRating:                  5,
			AvailabilityInPrint:         true,
			AvailabilityRating:          4,
			Strengths:                   []string{"Problem solving", "Affordable"},
			BestFor:                     []string{"Abstract thinkers"},
			ReviewCount:                 27,
		},
	},
	{
		grade:    "All Ages",
		subjects: []string{"History", "Reading", "Writing"},
		in: service.CurriculumInput{
			Name:                        "Story of the World",
			Publisher:                   "Well-Trained Mind Press",
			Description:                 "Narrative world history read aloud, with activity books and map work.",
			TeachingApproachStyle:       "Classical",
			TeachingApproachDescription: "Chronological history told as story, following the classical trivium.",
			TeachingApproachRating:      5,
			SubjectsCoveredRating:       4,
			MaterialsComponents:         []string{"Text", "Activity book", "Audiobook"},
			MaterialsFormat:             "Print + audio",
			MaterialsRating:             4,
			InstructionStyleType:        "Read-aloud",
			InstructionStyleRating:      4,
			CostPriceRange:              "$$",
			CostMinPrice:                50,
			CostMaxPrice:                120,
			CostRating:                  4,
			AvailabilityInPrint:         true,
			AvailabilityDigital:         true,
			AvailabilityUsedMarket:      true,
			AvailabilityRating:          5,
			Strengths:                   []string{"Engaging narrative", "Family friendly"},
			BestFor:                     []string{"Auditory learners", "Multiple ages"},
			ReviewCount:                 35,
		},
	},
	{
		grade:    "High School",
		subjects: []string{"Science"},
		in: service.CurriculumInput{
			Name:                        "Apologia Biology",
			Publisher:                   "Apologia",
			Description:                 "Self-directed high school biology with labs and notebooking.",
			TeachingApproachStyle:       "Textbook",
			TeachingApproachDescription: "Conversational textbook written to the student.",
			TeachingApproachRating:      4,
			MaterialsRating:             4,
			InstructionStyleType:        "Independent",
			InstructionStyleRating:      4,
			TimeCommitmentWeeklyHours:   5,
			TimeCommitmentRating:        3,
			CostPriceRange:              "$$$",
			CostMinPrice:                150,
			CostMaxPrice:                250,
			CostRating:                  3,
			AvailabilityInPrint:         true,
			AvailabilitySupplements:     true,
			AvailabilityRating:          4,
			Strengths:                   []string{"Independent study", "Lab components"},
			BestFor:                     []string{"Self-motivated students"},
			ReviewCount:                 18,
		},
	},
}

// Run 分类按名称幂等写入；已存在的课程（同 slug）跳过
func Run(ctx context.Context, db *gorm.DB, svc *service.CurriculumService, log *zap.Logger) (*Report, error) {
	rep := &Report{}
	grades := map[string]string{}
	for _, g := range gradeLevels {
		g.ID = utils.NewID()
		var row domain.GradeLevel
		res := db.WithContext(ctx).Where(domain.GradeLevel{Name: g.Name}).Attrs(g).FirstOrCreate(&row)
		if res.Error != nil {
			return nil, fmt.Errorf("seed grade level %s: %w", g.Name, res.Error)
		}
		rep.GradeLevels += int(res.RowsAffected)
		grades[g.Name] = row.ID
	}
	subs := map[string]string{}
	for _, s := range subjects {
		s.ID = utils.NewID()
		var row domain.Subject
		res := db.WithContext(ctx).Where(domain.Subject{Name: s.Name}).Attrs(s).FirstOrCreate(&row)
		if res.Error != nil {
			return nil, fmt.Errorf("seed subject %s: %w", s.Name, res.Error)
		}
		rep.Subjects += int(res.RowsAffected)
		subs[s.Name] = row.ID
	}

	for _, smp := range curricula {
		var n int64
		slug := utils.Slugify(smp.in.Name, smp.in.Publisher)
		if err := db.WithContext(ctx).Model(&domain.Curriculum{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("seed lookup %s: %w", slug, err)
		}
		if n > 0 {
			continue
		}
		in := smp.in
		in.GradeLevelID = grades[smp.grade]
		for _, name := range smp.subjects {
			in.SubjectIDs = append(in.SubjectIDs, subs[name])
		}
		if _, err := svc.Create(ctx, in); err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) && ae.Code == apperr.CodeConflict {
				continue
			}
			return nil, fmt.Errorf("seed curriculum %s: %w", in.Name, err)
		}
		rep.Curricula++
	}
	log.Info("seed done",
		zap.Int("grade_levels", rep.GradeLevels),
		zap.Int("subjects", rep.Subjects),
		zap.Int("curricula", rep.Curricula))
	return rep, nil
}
