package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/ez"
)

type CategoryHandler struct {
	svc *service.CatalogService
	db  *gorm.DB
}

func NewCategoryHandler(svc *service.CatalogService, db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{svc: svc, db: db}
}

// get 无入参的只读接口
func get[O any](e ez.EZ, path string, fn func(ctx context.Context) (O, error)) {
	ez.RegisterAction(e, ez.Action[struct{}, O]{
		Method: http.MethodGet,
		Path:   path,
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (O, error) {
			return fn(c.Request.Context())
		},
	})
}

func (h *CategoryHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api.Group("/categories"))
	get(e, "", h.svc.All)
	get(e, "/subjects", h.svc.Subjects)
	get(e, "/grade-levels", h.svc.GradeLevels)
	get(e, "/teaching-approaches", h.svc.TeachingApproaches)
	get(e, "/cost-ranges", h.svc.CostRanges)
}

// MountAdmin 学科与年级的管理端增删改查
func (h *CategoryHandler) MountAdmin(admin *gin.RouterGroup) {
	changed := func(c *gin.Context) { h.svc.Changed(c.Request.Context()) }

	ez.Crud(ez.CrudConfig[domain.Subject]{
		DB:            h.db,
		Group:         admin,
		Path:          "/subjects",
		Name:          "Subject",
		New:           func() *domain.Subject { return &domain.Subject{} },
		SearchColumns: []string{"name", "description"},
		OrderBy:       []clause.OrderByColumn{{Column: clause.Column{Name: "name"}}},
		Hooks: ez.CrudHooks[domain.Subject]{
			// 先移除关联行
			BeforeDelete: func(c *gin.Context, tx *gorm.DB, id string) error {
				return tx.Where("subject_id = ?", id).Delete(&domain.CurriculumSubject{}).Error
			},
			AfterWrite: changed,
		},
	})

	ez.Crud(ez.CrudConfig[domain.GradeLevel]{
		DB:            h.db,
		Group:         admin,
		Path:          "/grade-levels",
		Name:          "Grade level",
		New:           func() *domain.GradeLevel { return &domain.GradeLevel{} },
		SearchColumns: []string{"name", "description"},
		OrderBy: []clause.OrderByColumn{
			{Column: clause.Column{Name: "sort_order"}},
			{Column: clause.Column{Name: "name"}},
		},
		Hooks: ez.CrudHooks[domain.GradeLevel]{
			BeforeDelete: func(c *gin.Context, tx *gorm.DB, id string) error {
				var n int64
				if err := tx.Model(&domain.Curriculum{}).Where("grade_level_id = ?", id).Count(&n).Error; err != nil {
					return err
				}
				if n > 0 {
					return apperr.Conflict("Grade level is still used by curricula")
				}
				return nil
			},
			AfterWrite: changed,
		},
	})
}
