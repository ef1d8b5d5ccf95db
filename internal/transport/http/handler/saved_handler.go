package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/ez"
	mdw "shelf-taught/internal/transport/http/middleware"
	"shelf-taught/internal/transport/http/response"
)

type SavedHandler struct {
	svc *service.SavedService
	jwt *auth.JWTer
}

func NewSavedHandler(svc *service.SavedService, jwt *auth.JWTer) *SavedHandler {
	return &SavedHandler{svc: svc, jwt: jwt}
}

type pageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (h *SavedHandler) MountAPI(api *gin.RouterGroup) {
	g := api.Group("/user/saved", mdw.Authenticate(h.jwt))
	e := ez.New(g)

	ez.RegisterAction(e, ez.Action[pageQuery, response.Page[domain.SavedCurriculum]]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *pageQuery) (response.Page[domain.SavedCurriculum], error) {
			p, err := h.svc.List(c.Request.Context(), userID(c), in.Page, in.Limit)
			if err != nil {
				return response.Page[domain.SavedCurriculum]{}, err
			}
			return page(p), nil
		},
	})

	// 首次保存 201，重复保存只更新备注 200
	ez.RegisterAction(e, ez.Action[service.SaveInput, ez.Reply]{
		Method: http.MethodPost,
		Path:   "",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *service.SaveInput) (ez.Reply, error) {
			sv, created, err := h.svc.Save(c.Request.Context(), userID(c), *in)
			if err != nil {
				return ez.Reply{}, err
			}
			if created {
				return ez.Reply{Status: http.StatusCreated, Message: "Curriculum saved", Data: sv}, nil
			}
			return ez.Reply{Message: "Saved curriculum updated", Data: sv}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method:  http.MethodDelete,
		Path:    "/:id",
		Binder:  ez.BindNone,
		Auth:    true,
		Message: "Curriculum removed from saved list",
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.svc.Remove(c.Request.Context(), userID(c), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.SavedStatus]{
		Method: http.MethodGet,
		Path:   "/check/:curriculumId",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.SavedStatus, error) {
			return h.svc.Check(c.Request.Context(), userID(c), c.Param("curriculumId"))
		},
	})
}
