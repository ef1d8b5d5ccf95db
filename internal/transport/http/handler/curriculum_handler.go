package handler

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/ez"
	mdw "shelf-taught/internal/transport/http/middleware"
	"shelf-taught/internal/transport/http/response"
)

type CurriculumHandler struct {
	svc *service.CurriculumService
	jwt *auth.JWTer
}

func NewCurriculumHandler(svc *service.CurriculumService, jwt *auth.JWTer) *CurriculumHandler {
	return &CurriculumHandler{svc: svc, jwt: jwt}
}

type listQuery struct {
	filterQuery
	TeachingApproach string `form:"teachingApproach"`
	Search           string `form:"search"`
}

func (h *CurriculumHandler) list(c *gin.Context, in *listQuery) (response.Page[domain.Curriculum], error) {
	f := in.filter(c)
	f.TeachingApproach = strings.TrimSpace(in.TeachingApproach)
	p, err := h.svc.List(c.Request.Context(), service.ListParams{
		Filter:    f,
		Search:    in.Search,
		SortBy:    in.SortBy,
		SortOrder: in.SortOrder,
		Page:      in.Page,
		Limit:     in.Limit,
	})
	if err != nil {
		return response.Page[domain.Curriculum]{}, err
	}
	return page(p), nil
}

func (h *CurriculumHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api.Group("/curricula"))

	ez.RegisterAction(e, ez.Action[listQuery, response.Page[domain.Curriculum]]{
		Method:  http.MethodGet,
		Path:    "",
		Binder:  ez.BindQuery,
		Handler: h.list,
	})

	// slug 优先，其次按 id；带有效令牌时返回收藏状态
	ez.RegisterAction(e, ez.Action[struct{}, *service.CurriculumDetail]{
		Method: http.MethodGet,
		Path:   "/:slugOrId",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.CurriculumDetail, error) {
			return h.svc.Get(c.Request.Context(), c.Param("slugOrId"), userID(c))
		},
	}, mdw.OptionalAuth(h.jwt))
}

func (h *CurriculumHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin.Group("/curricula"))

	ez.RegisterAction(e, ez.Action[listQuery, response.Page[domain.Curriculum]]{
		Method:  http.MethodGet,
		Path:    "",
		Binder:  ez.BindQuery,
		Handler: h.list,
	})

	ez.RegisterAction(e, ez.Action[service.CurriculumInput, *domain.Curriculum]{
		Method:  http.MethodPost,
		Path:    "",
		Binder:  ez.BindJSON,
		Status:  http.StatusCreated,
		Message: "Curriculum created successfully",
		Handler: func(c *gin.Context, in *service.CurriculumInput) (*domain.Curriculum, error) {
			return h.svc.Create(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[service.CurriculumPatch, *domain.Curriculum]{
		Method:  http.MethodPut,
		Path:    "/:id",
		Binder:  ez.BindJSON,
		Message: "Curriculum updated successfully",
		Handler: func(c *gin.Context, in *service.CurriculumPatch) (*domain.Curriculum, error) {
			return h.svc.Update(c.Request.Context(), c.Param("id"), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method:  http.MethodDelete,
		Path:    "/:id",
		Binder:  ez.BindNone,
		Message: "Curriculum deleted successfully",
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.svc.Delete(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.POSTFILE(e, "/:id/image", "image", func(c *gin.Context, fh *multipart.FileHeader) (*domain.Curriculum, error) {
		f, err := fh.Open()
		if err != nil {
			return nil, apperr.Validation("Unreadable upload", err.Error())
		}
		defer f.Close()
		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			head := make([]byte, 512)
			n, _ := f.Read(head)
			ct = http.DetectContentType(head[:n])
			if _, err := f.Seek(0, 0); err != nil {
				return nil, apperr.Internal("rewind upload failed", err)
			}
		}
		return h.svc.UploadImage(c.Request.Context(), c.Param("id"), service.Upload{
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Body:        f,
		})
	})
}
