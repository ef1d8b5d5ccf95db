package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/ez"
	"shelf-taught/internal/transport/http/response"
	"shelf-taught/internal/validate"
)

// AdminHandler 统计、用户管理与审核队列；分组已要求 ADMIN
type AdminHandler struct {
	svc *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type userListQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"search"`
	Role   string `form:"role"`
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)

	ez.RegisterAction(e, ez.Action[struct{}, *service.Analytics]{
		Method: http.MethodGet,
		Path:   "/analytics",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.Analytics, error) {
			return h.svc.Analytics(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[userListQuery, response.Page[domain.User]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *userListQuery) (response.Page[domain.User], error) {
			p, err := h.svc.Users(c.Request.Context(), service.UserListParams{
				Search: in.Search, Role: in.Role, Page: in.Page, Limit: in.Limit,
			})
			if err != nil {
				return response.Page[domain.User]{}, err
			}
			return page(p), nil
		},
	})

	ez.RegisterAction(e, ez.Action[service.RoleInput, *domain.User]{
		Method:  http.MethodPut,
		Path:    "/users/:id/role",
		Binder:  ez.BindJSON,
		Message: "User role updated successfully",
		Handler: func(c *gin.Context, in *service.RoleInput) (*domain.User, error) {
			if err := validate.Struct(in); err != nil {
				return nil, err
			}
			return h.svc.UpdateRole(c.Request.Context(), userID(c), c.Param("id"), in.Role)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method:  http.MethodDelete,
		Path:    "/users/:id",
		Binder:  ez.BindNone,
		Message: "User deleted successfully",
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.svc.DeleteUser(c.Request.Context(), userID(c), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.ModerationSummary]{
		Method: http.MethodGet,
		Path:   "/moderation",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.ModerationSummary, error) {
			return h.svc.Moderation(c.Request.Context())
		},
	})
}
