package service

import (
	"math"
	"strings"

	"shelf-taught/internal/domain"
)

// 相关度各项权重
const (
	scoreExactName        = 50
	scorePartialName      = 25
	scoreNameWord         = 15
	scorePublisher        = 10
	scoreDescriptionMax   = 8
	scoreDescriptionMin   = 2
	scoreTeachingApproach = 12
	scoreInstructionStyle = 8
	scoreSubject          = 20
	scoreStrength         = 6
	scoreBestFor          = 8
	scoreReviewPer        = 0.25
	scoreReviewCap        = 20
	scoreRatingBoost      = 0.1
)

// Relevance 计算课程与查询的相关度，大小写不敏感
func Relevance(c *domain.Curriculum, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	name := strings.ToLower(c.Name)
	var score float64

	switch {
	case name == q:
		score += scoreExactName
	case strings.Contains(name, q):
		score += scorePartialName
	}
	for _, w := range strings.Fields(q) {
		if strings.Contains(name, w) {
			score += scoreNameWord
		}
	}
	if strings.Contains(strings.ToLower(c.Publisher), q) {
		score += scorePublisher
	}
	if desc := strings.ToLower(c.Description); desc != "" {
		if pos := strings.Index(desc, q); pos >= 0 {
			// 越靠前权重越高
			score += math.Max(scoreDescriptionMin, scoreDescriptionMax*(1-float64(pos)/float64(len(desc))))
		}
	}
	if strings.Contains(strings.ToLower(c.TeachingApproachStyle), q) ||
		strings.Contains(strings.ToLower(c.TeachingApproachDescription), q) {
		score += scoreTeachingApproach
	}
	if strings.Contains(strings.ToLower(c.InstructionStyleType), q) {
		score += scoreInstructionStyle
	}
	for _, s := range c.Subjects {
		if strings.Contains(strings.ToLower(s.Name), q) {
			score += scoreSubject
			break
		}
	}
	if anyContains(c.Strengths, q) {
		score += scoreStrength
	}
	if anyContains(c.BestFor, q) {
		score += scoreBestFor
	}
	score += math.Min(float64(c.ReviewCount), scoreReviewCap) * scoreReviewPer
	score *= 1 + c.OverallRating*scoreRatingBoost
	return round2(score)
}

// Popularity 评分 × 20 加上封顶 50 的评论数贡献
func Popularity(c *domain.Curriculum) float64 {
	return round2(c.OverallRating*20 + math.Min(float64(c.ReviewCount)*2, 50))
}

func anyContains(items []string, q string) bool {
	for _, it := range items {
		if strings.Contains(strings.ToLower(it), q) {
			return true
		}
	}
	return false
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
