package repo

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shelf-taught/internal/domain"
)

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '!' 使用
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likeOp 三种方言都接受的转义写法
const likeOp = " LIKE ? ESCAPE '!'"

func likeText(s string) string { return likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) }

func likeContains(s string) string { return "%" + likeText(s) + "%" }

func likePrefix(s string) string { return likeText(s) + "%" }

// likeElement 匹配 JSON 数组中与 s 完全相同的元素。
// sqlite 存的是 json.Marshal 原文，& < > 被写成 \u0026 之类，needle 按同样方式编码
func likeElement(db *gorm.DB, s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(db.Dialector.Name() == "sqlite")
	_ = enc.Encode(strings.ToLower(strings.TrimSpace(s)))
	return "%" + likeEscaper.Replace(strings.TrimSpace(buf.String())) + "%"
}

// jsonText JSON 列转文本后才能 LIKE
func jsonText(db *gorm.DB, col string) string {
	if db.Dialector.Name() == "mysql" {
		return "CAST(" + col + " AS CHAR)"
	}
	return "CAST(" + col + " AS TEXT)"
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// applyFilter 追加与筛选条件对应的 AND 子句
func applyFilter(q *gorm.DB, f domain.CurriculumFilter) *gorm.DB {
	if ids := uniq(f.GradeLevelIDs); len(ids) > 0 {
		q = q.Where("grade_level_id IN ?", ids)
	}
	if ids := uniq(f.SubjectIDs); len(ids) > 0 {
		q = q.Where("id IN (SELECT curriculum_id FROM curriculum_subjects WHERE subject_id IN ?)", ids)
	}
	if s := strings.TrimSpace(f.TeachingApproach); s != "" {
		like := likeContains(s)
		q = q.Where("(LOWER(teaching_approach_style)"+likeOp+" OR LOWER(teaching_approach_description)"+likeOp+")", like, like)
	}
	if len(f.TeachingApproaches) > 0 {
		lowered := make([]string, 0, len(f.TeachingApproaches))
		for _, a := range uniq(f.TeachingApproaches) {
			lowered = append(lowered, strings.ToLower(a))
		}
		if len(lowered) > 0 {
			q = q.Where("LOWER(teaching_approach_style) IN ?", lowered)
		}
	}
	if rs := uniq(f.CostRanges); len(rs) > 0 {
		q = q.Where("cost_price_range IN ?", rs)
	}
	if f.MinRating != nil {
		q = q.Where("overall_rating >= ?", *f.MinRating)
	}
	if f.MaxRating != nil {
		q = q.Where("overall_rating <= ?", *f.MaxRating)
	}
	for _, a := range uniq(f.Availability) {
		if col, ok := domain.AvailabilityColumns[a]; ok {
			q = q.Where(col+" = ?", true)
		}
	}
	// 年龄区间与年级的 [age_min, age_max] 有交集
	if f.MinAge != nil || f.MaxAge != nil {
		sub := "grade_level_id IN (SELECT id FROM grade_levels WHERE 1 = 1"
		var args []any
		if f.MaxAge != nil {
			sub += " AND age_min <= ?"
			args = append(args, *f.MaxAge)
		}
		if f.MinAge != nil {
			sub += " AND age_max >= ?"
			args = append(args, *f.MinAge)
		}
		q = q.Where(sub+")", args...)
	}
	return q
}

// textMatch 搜索的析取条件：多列子串、数组元素精确匹配、关联学科名
func textMatch(q *gorm.DB, text string) *gorm.DB {
	like := likeContains(text)
	elem := likeElement(q, text)
	return q.Where(
		"(LOWER(name)"+likeOp+" OR LOWER(publisher)"+likeOp+" OR LOWER(description)"+likeOp+
			" OR LOWER(teaching_approach_style)"+likeOp+" OR LOWER(teaching_approach_description)"+likeOp+
			" OR LOWER(instruction_style_type)"+likeOp+
			" OR LOWER("+jsonText(q, "strengths")+")"+likeOp+" OR LOWER("+jsonText(q, "best_for")+")"+likeOp+
			" OR id IN (SELECT cs.curriculum_id FROM curriculum_subjects cs JOIN subjects s ON s.id = cs.subject_id WHERE LOWER(s.name)"+likeOp+"))",
		like, like, like, like, like, like, elem, elem, like,
	)
}

// listSearch 列表页的简单搜索
func listSearch(q *gorm.DB, text string) *gorm.DB {
	like := likeContains(text)
	return q.Where(
		"(LOWER(name)"+likeOp+" OR LOWER(publisher)"+likeOp+" OR LOWER(description)"+likeOp+" OR LOWER(teaching_approach_description)"+likeOp+")",
		like, like, like, like,
	)
}

func orderBy(col string, desc bool) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}
}
