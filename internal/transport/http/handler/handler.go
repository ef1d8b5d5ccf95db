// Package handler HTTP 入口：把查询串/请求体翻译成 service 调用，
// 每个 handler 通过 MountAPI / MountAdmin / MountRoot 挂到 router 的注册表。
package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/middleware"
	"shelf-taught/internal/transport/http/response"
)

// csv 同时支持重复参数与逗号分隔：?subjects=a&subjects=b,c
func csv(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// multi 兼容 key 与 key[] 两种写法
func multi(c *gin.Context, key string) []string {
	return csv(append(c.QueryArray(key), c.QueryArray(key+"[]")...))
}

func page[T any](p *service.Paged[T]) response.Page[T] {
	return response.NewPage(p.Items, p.Page, p.Limit, p.Total)
}

func userID(c *gin.Context) string { return middleware.UserID(c) }

// filterQuery 列表与搜索共用的筛选参数
type filterQuery struct {
	MinRating *float64 `form:"minRating"`
	MaxRating *float64 `form:"maxRating"`
	MinAge    *int     `form:"minAge"`
	MaxAge    *int     `form:"maxAge"`
	SortBy    string   `form:"sortBy"`
	SortOrder string   `form:"sortOrder"`
	Page      int      `form:"page"`
	Limit     int      `form:"limit"`
}

func (q filterQuery) filter(c *gin.Context) domain.CurriculumFilter {
	return domain.CurriculumFilter{
		GradeLevelIDs: multi(c, "gradeLevel"),
		SubjectIDs:    multi(c, "subjects"),
		CostRanges:    multi(c, "costRange"),
		MinRating:     q.MinRating,
		MaxRating:     q.MaxRating,
		MinAge:        q.MinAge,
		MaxAge:        q.MaxAge,
	}
}
