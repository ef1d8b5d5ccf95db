package ez

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

func (e EZ) Group() *gin.RouterGroup { return e.g }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// Reply 需要按结果决定状态码时作为出参返回
type Reply struct {
	Status  int
	Message string
	Data    any
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string   // "GET" | "POST" | "PUT" | "PATCH" | "DELETE"
	Path    string   // 例："/auth/login"、"/users/:id/role"
	Binder  Binder   // 绑定方式
	Status  int      // 成功状态码，默认 200
	Message string   // 成功提示（可选）
	Auth    bool     // 是否要求登录（检查 userId）
	Roles   []string // 限定角色（可选）
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口；mw 只作用于该路由
func RegisterAction[I any, O any](e EZ, a Action[I, O], mw ...gin.HandlerFunc) {
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth {
			if c.GetString("userId") == "" {
				response.Error(c, apperr.Unauthenticated("Authentication required"))
				return
			}
			if len(a.Roles) > 0 && !slices.Contains(a.Roles, c.GetString("role")) {
				response.Error(c, apperr.Forbidden("Insufficient permissions"))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default:
		}
		if bindErr != nil {
			response.Error(c, BindError(bindErr))
			return
		}

		// 3) 执行
		out, err := a.Handler(c, &in)
		if err != nil {
			response.Error(c, err)
			return
		}
		write(c, a.Status, a.Message, out)
	}

	handlers := append(append([]gin.HandlerFunc{}, mw...), h)
	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, handlers...)
	case http.MethodPut:
		e.g.PUT(a.Path, handlers...)
	case http.MethodPatch:
		e.g.PATCH(a.Path, handlers...)
	case http.MethodDelete:
		e.g.DELETE(a.Path, handlers...)
	default: // 默认 POST
		e.g.POST(a.Path, handlers...)
	}
}

// POSTFILE 单文件 multipart 上传
func POSTFILE[O any](e EZ, path, field string, h func(c *gin.Context, fh *multipart.FileHeader) (O, error), mw ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, mw...), func(c *gin.Context) {
		fh, err := c.FormFile(field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				response.Error(c, apperr.Validation("No file uploaded", field+" is required"))
				return
			}
			response.Error(c, BindError(err))
			return
		}
		out, err := h(c, fh)
		if err != nil {
			response.Error(c, err)
			return
		}
		write(c, http.StatusOK, "", out)
	})
	e.g.POST(path, handlers...)
}

// BindError 绑定失败：超限 413，其余 400
func BindError(err error) error {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return apperr.TooLarge("Request body too large")
	case errors.Is(err, io.EOF):
		return apperr.Validation("Request body is required")
	}
	return apperr.Validation("Invalid request", err.Error())
}

func write(c *gin.Context, status int, msg string, out any) {
	if status == 0 {
		status = http.StatusOK
	}
	if r, ok := out.(Reply); ok {
		if r.Status != 0 {
			status = r.Status
		}
		if r.Message != "" {
			msg = r.Message
		}
		out = r.Data
	}
	env := response.Message(msg, out)
	if p, ok := out.(response.Paginated); ok {
		env.Data = p.Payload()
		env.Pagination = p.PageMeta()
	}
	c.JSON(status, env)
}
