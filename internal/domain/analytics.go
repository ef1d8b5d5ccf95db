package domain

import (
	"context"
	"time"
)

type Totals struct {
	Users       int64 `json:"users"`
	Admins      int64 `json:"admins"`
	Curricula   int64 `json:"curricula"`
	Subjects    int64 `json:"subjects"`
	GradeLevels int64 `json:"gradeLevels"`
	Saves       int64 `json:"saves"`
}

type RankedCurriculum struct {
	ID            string  `json:"id"`
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	Publisher     string  `json:"publisher"`
	OverallRating float64 `json:"overallRating"`
	ReviewCount   int     `json:"reviewCount"`
	SaveCount     int64   `json:"saveCount"`
}

type Activity struct {
	Since            time.Time `json:"since"`
	NewUsers         int64     `json:"newUsers"`
	NewCurricula     int64     `json:"newCurricula"`
	NewSaves         int64     `json:"newSaves"`
	UpdatedCurricula int64     `json:"updatedCurricula"`
}

type AnalyticsRepository interface {
	Totals(ctx context.Context) (Totals, error)
	TopRated(ctx context.Context, limit int) ([]RankedCurriculum, error)
	MostSaved(ctx context.Context, limit int) ([]RankedCurriculum, error)
	ByGradeLevel(ctx context.Context) ([]ValueCount, error)
	BySubject(ctx context.Context) ([]ValueCount, error)
	Activity(ctx context.Context, since time.Time) (Activity, error)
	// RatingAverages 各分项评分的均值（忽略 0）
	RatingAverages(ctx context.Context) (map[string]float64, error)
}
