package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/ez"
	mdw "shelf-taught/internal/transport/http/middleware"
)

type AuthHandler struct {
	svc     *service.AuthService
	jwt     *auth.JWTer
	limiter gin.HandlerFunc // 登录/注册的更严格限速，可为 nil
}

func NewAuthHandler(svc *service.AuthService, jwt *auth.JWTer, limiter gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{svc: svc, jwt: jwt, limiter: limiter}
}

func (h *AuthHandler) Priority() int { return 10 }

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	g := api.Group("/auth")
	var limited []gin.HandlerFunc
	if h.limiter != nil {
		limited = append(limited, h.limiter)
	}
	e := ez.New(g)

	ez.RegisterAction(e, ez.Action[service.RegisterInput, *service.AuthResult]{
		Method:  http.MethodPost,
		Path:    "/register",
		Binder:  ez.BindJSON,
		Status:  http.StatusCreated,
		Message: "Registration successful",
		Handler: func(c *gin.Context, in *service.RegisterInput) (*service.AuthResult, error) {
			return h.svc.Register(c.Request.Context(), *in)
		},
	}, limited...)

	ez.RegisterAction(e, ez.Action[service.LoginInput, *service.AuthResult]{
		Method:  http.MethodPost,
		Path:    "/login",
		Binder:  ez.BindJSON,
		Message: "Login successful",
		Handler: func(c *gin.Context, in *service.LoginInput) (*service.AuthResult, error) {
			return h.svc.Login(c.Request.Context(), *in)
		},
	}, limited...)

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.svc.Me(c.Request.Context(), userID(c))
		},
	}, mdw.Authenticate(h.jwt))
}
