package service

import (
	"strings"

	"gorm.io/datatypes"

	"shelf-taught/internal/domain"
)

// CurriculumInput 新建时的请求结构，必填项由 tag 约束
type CurriculumInput struct {
	Name         string   `json:"name" validate:"required,min=2,max=191"`
	Publisher    string   `json:"publisher" validate:"required,min=2,max=191"`
	Description  string   `json:"description" validate:"required,min=10,max=5000"`
	ImageURL     string   `json:"imageUrl" validate:"omitempty,url,max=512"`
	Website      string   `json:"website" validate:"omitempty,url,max=512"`
	GradeLevelID string   `json:"gradeLevelId" validate:"required"`
	SubjectIDs   []string `json:"subjectIds" validate:"max=20"`

	TargetAgeGradeDescription string `json:"targetAgeGradeDescription" validate:"max=2000"`
	TargetAgeGradeRating      int    `json:"targetAgeGradeRating" validate:"min=0,max=5"`

	TeachingApproachStyle       string `json:"teachingApproachStyle" validate:"max=100"`
	TeachingApproachDescription string `json:"teachingApproachDescription" validate:"max=2000"`
	TeachingApproachRating      int    `json:"teachingApproachRating" validate:"min=0,max=5"`

	SubjectsCoveredDescription string `json:"subjectsCoveredDescription" validate:"max=2000"`
	SubjectsCoveredRating      int    `json:"subjectsCoveredRating" validate:"min=0,max=5"`

	MaterialsComponents []string `json:"materialsComponents" validate:"max=30,dive,max=200"`
	MaterialsFormat     string   `json:"materialsFormat" validate:"max=100"`
	MaterialsRating     int      `json:"materialsRating" validate:"min=0,max=5"`

	InstructionStyleType        string `json:"instructionStyleType" validate:"max=100"`
	InstructionStyleDescription string `json:"instructionStyleDescription" validate:"max=2000"`
	InstructionStyleRating      int    `json:"instructionStyleRating" validate:"min=0,max=5"`

	TimeCommitmentDailyMinutes int    `json:"timeCommitmentDailyMinutes" validate:"min=0,max=1440"`
	TimeCommitmentWeeklyHours  int    `json:"timeCommitmentWeeklyHours" validate:"min=0,max=168"`
	TimeCommitmentDescription  string `json:"timeCommitmentDescription" validate:"max=2000"`
	TimeCommitmentRating       int    `json:"timeCommitmentRating" validate:"min=0,max=5"`

	CostPriceRange       string  `json:"costPriceRange" validate:"costrange"`
	CostMinPrice         float64 `json:"costMinPrice" validate:"min=0"`
	CostMaxPrice         float64 `json:"costMaxPrice" validate:"min=0"`
	CostValueDescription string  `json:"costValueDescription" validate:"max=2000"`
	CostRating           int     `json:"costRating" validate:"min=0,max=5"`

	AvailabilityInPrint     bool `json:"availabilityInPrint"`
	AvailabilityDigital     bool `json:"availabilityDigital"`
	AvailabilityUsedMarket  bool `json:"availabilityUsedMarket"`
	AvailabilitySupplements bool `json:"availabilitySupplements"`
	AvailabilityRating      int  `json:"availabilityRating" validate:"min=0,max=5"`

	Strengths  []string `json:"strengths" validate:"max=20,dive,max=200"`
	Weaknesses []string `json:"weaknesses" validate:"max=20,dive,max=200"`
	BestFor    []string `json:"bestFor" validate:"max=20,dive,max=200"`

	ReviewCount int `json:"reviewCount" validate:"min=0"`
}

func (in *CurriculumInput) apply(c *domain.Curriculum) {
	c.Name = strings.TrimSpace(in.Name)
	c.Publisher = strings.TrimSpace(in.Publisher)
	c.Description = strings.TrimSpace(in.Description)
	c.ImageURL = in.ImageURL
	c.Website = in.Website
	c.GradeLevelID = in.GradeLevelID

	c.TargetAgeGradeDescription = in.TargetAgeGradeDescription
	c.TargetAgeGradeRating = in.TargetAgeGradeRating
	c.TeachingApproachStyle = strings.TrimSpace(in.TeachingApproachStyle)
	c.TeachingApproachDescription = in.TeachingApproachDescription
	c.TeachingApproachRating = in.TeachingApproachRating
	c.SubjectsCoveredDescription = in.SubjectsCoveredDescription
	c.SubjectsCoveredRating = in.SubjectsCoveredRating
	c.MaterialsComponents = list(in.MaterialsComponents)
	c.MaterialsFormat = in.MaterialsFormat
	c.MaterialsRating = in.MaterialsRating
	c.InstructionStyleType = in.InstructionStyleType
	c.InstructionStyleDescription = in.InstructionStyleDescription
	c.InstructionStyleRating = in.InstructionStyleRating
	c.TimeCommitmentDailyMinutes = in.TimeCommitmentDailyMinutes
	c.TimeCommitmentWeeklyHours = in.TimeCommitmentWeeklyHours
	c.TimeCommitmentDescription = in.TimeCommitmentDescription
	c.TimeCommitmentRating = in.TimeCommitmentRating
	c.CostPriceRange = in.CostPriceRange
	c.CostMinPrice = in.CostMinPrice
	c.CostMaxPrice = in.CostMaxPrice
	c.CostValueDescription = in.CostValueDescription
	c.CostRating = in.CostRating
	c.AvailabilityInPrint = in.AvailabilityInPrint
	c.AvailabilityDigital = in.AvailabilityDigital
	c.AvailabilityUsedMarket = in.AvailabilityUsedMarket
	c.AvailabilitySupplements = in.AvailabilitySupplements
	c.AvailabilityRating = in.AvailabilityRating
	c.Strengths = list(in.Strengths)
	c.Weaknesses = list(in.Weaknesses)
	c.BestFor = list(in.BestFor)
	c.ReviewCount = in.ReviewCount
}

// CurriculumPatch 更新请求：nil 字段保持不变
type CurriculumPatch struct {
	Name         *string   `json:"name" validate:"omitempty,min=2,max=191"`
	Publisher    *string   `json:"publisher" validate:"omitempty,min=2,max=191"`
	Description  *string   `json:"description" validate:"omitempty,min=10,max=5000"`
	ImageURL     *string   `json:"imageUrl" validate:"omitempty,url,max=512"`
	Website      *string   `json:"website" validate:"omitempty,url,max=512"`
	GradeLevelID *string   `json:"gradeLevelId" validate:"omitempty,min=1"`
	SubjectIDs   *[]string `json:"subjectIds" validate:"omitempty,max=20"`

	TargetAgeGradeDescription *string `json:"targetAgeGradeDescription" validate:"omitempty,max=2000"`
	TargetAgeGradeRating      *int    `json:"targetAgeGradeRating" validate:"omitempty,min=0,max=5"`

	TeachingApproachStyle       *string `json:"teachingApproachStyle" validate:"omitempty,max=100"`
	TeachingApproachDescription *string `json:"teachingApproachDescription" validate:"omitempty,max=2000"`
	TeachingApproachRating      *int    `json:"teachingApproachRating" validate:"omitempty,min=0,max=5"`

	SubjectsCoveredDescription *string `json:"subjectsCoveredDescription" validate:"omitempty,max=2000"`
	SubjectsCoveredRating      *int    `json:"subjectsCoveredRating" validate:"omitempty,min=0,max=5"`

	MaterialsComponents *[]string `json:"materialsComponents" validate:"omitempty,max=30,dive,max=200"`
	MaterialsFormat     *string   `json:"materialsFormat" validate:"omitempty,max=100"`
	MaterialsRating     *int      `json:"materialsRating" validate:"omitempty,min=0,max=5"`

	InstructionStyleType        *string `json:"instructionStyleType" validate:"omitempty,max=100"`
	InstructionStyleDescription *string `json:"instructionStyleDescription" validate:"omitempty,max=2000"`
	InstructionStyleRating      *int    `json:"instructionStyleRating" validate:"omitempty,min=0,max=5"`

	TimeCommitmentDailyMinutes *int    `json:"timeCommitmentDailyMinutes" validate:"omitempty,min=0,max=1440"`
	TimeCommitmentWeeklyHours  *int    `json:"timeCommitmentWeeklyHours" validate:"omitempty,min=0,max=168"`
	TimeCommitmentDescription  *string `json:"timeCommitmentDescription" validate:"omitempty,max=2000"`
	TimeCommitmentRating       *int    `json:"timeCommitmentRating" validate:"omitempty,min=0,max=5"`

	CostPriceRange       *string  `json:"costPriceRange" validate:"omitempty,costrange"`
	CostMinPrice         *float64 `json:"costMinPrice" validate:"omitempty,min=0"`
	CostMaxPrice         *float64 `json:"costMaxPrice" validate:"omitempty,min=0"`
	CostValueDescription *string  `json:"costValueDescription" validate:"omitempty,max=2000"`
	CostRating           *int     `json:"costRating" validate:"omitempty,min=0,max=5"`

	AvailabilityInPrint     *bool `json:"availabilityInPrint"`
	AvailabilityDigital     *bool `json:"availabilityDigital"`
	AvailabilityUsedMarket  *bool `json:"availabilityUsedMarket"`
	AvailabilitySupplements *bool `json:"availabilitySupplements"`
	AvailabilityRating      *int  `json:"availabilityRating" validate:"omitempty,min=0,max=5"`

	Strengths  *[]string `json:"strengths" validate:"omitempty,max=20,dive,max=200"`
	Weaknesses *[]string `json:"weaknesses" validate:"omitempty,max=20,dive,max=200"`
	BestFor    *[]string `json:"bestFor" validate:"omitempty,max=20,dive,max=200"`

	ReviewCount *int `json:"reviewCount" validate:"omitempty,min=0"`
}

// apply 合并非 nil 字段，返回 name 或 publisher 是否变化
func (p *CurriculumPatch) apply(c *domain.Curriculum) (identityChanged bool) {
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		identityChanged = identityChanged || v != c.Name
		c.Name = v
	}
	if p.Publisher != nil {
		v := strings.TrimSpace(*p.Publisher)
		identityChanged = identityChanged || v != c.Publisher
		c.Publisher = v
	}
	setStr(&c.Description, p.Description)
	setStr(&c.ImageURL, p.ImageURL)
	setStr(&c.Website, p.Website)
	if p.GradeLevelID != nil && *p.GradeLevelID != c.GradeLevelID {
		c.GradeLevelID = *p.GradeLevelID
		c.GradeLevel = nil
	}

	setStr(&c.TargetAgeGradeDescription, p.TargetAgeGradeDescription)
	setInt(&c.TargetAgeGradeRating, p.TargetAgeGradeRating)
	setStr(&c.TeachingApproachStyle, p.TeachingApproachStyle)
	setStr(&c.TeachingApproachDescription, p.TeachingApproachDescription)
	setInt(&c.TeachingApproachRating, p.TeachingApproachRating)
	setStr(&c.SubjectsCoveredDescription, p.SubjectsCoveredDescription)
	setInt(&c.SubjectsCoveredRating, p.SubjectsCoveredRating)
	setList(&c.MaterialsComponents, p.MaterialsComponents)
	setStr(&c.MaterialsFormat, p.MaterialsFormat)
	setInt(&c.MaterialsRating, p.MaterialsRating)
	setStr(&c.InstructionStyleType, p.InstructionStyleType)
	setStr(&c.InstructionStyleDescription, p.InstructionStyleDescription)
	setInt(&c.InstructionStyleRating, p.InstructionStyleRating)
	setInt(&c.TimeCommitmentDailyMinutes, p.TimeCommitmentDailyMinutes)
	setInt(&c.TimeCommitmentWeeklyHours, p.TimeCommitmentWeeklyHours)
	setStr(&c.TimeCommitmentDescription, p.TimeCommitmentDescription)
	setInt(&c.TimeCommitmentRating, p.TimeCommitmentRating)
	setStr(&c.CostPriceRange, p.CostPriceRange)
	setFloat(&c.CostMinPrice, p.CostMinPrice)
	setFloat(&c.CostMaxPrice, p.CostMaxPrice)
	setStr(&c.CostValueDescription, p.CostValueDescription)
	setInt(&c.CostRating, p.CostRating)
	setBool(&c.AvailabilityInPrint, p.AvailabilityInPrint)
	setBool(&c.AvailabilityDigital, p.AvailabilityDigital)
	setBool(&c.AvailabilityUsedMarket, p.AvailabilityUsedMarket)
	setBool(&c.AvailabilitySupplements, p.AvailabilitySupplements)
	setInt(&c.AvailabilityRating, p.AvailabilityRating)
	setList(&c.Strengths, p.Strengths)
	setList(&c.Weaknesses, p.Weaknesses)
	setList(&c.BestFor, p.BestFor)
	setInt(&c.ReviewCount, p.ReviewCount)
	return identityChanged
}

func list(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setList(dst *datatypes.JSONSlice[string], v *[]string) {
	if v != nil {
		*dst = list(*v)
	}
}
