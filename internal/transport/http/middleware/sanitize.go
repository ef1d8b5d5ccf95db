package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/transport/http/response"
)

// 密码原样保留
var rawFields = map[string]struct{}{"password": {}}

// Sanitize 去掉 JSON 请求体字符串里的 HTML 标签
func Sanitize() gin.HandlerFunc {
	p := bluemonday.StrictPolicy()
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}
		if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), "application/json") {
			c.Next()
			return
		}
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				response.Error(c, apperr.TooLarge("Request body too large"))
				return
			}
			response.Error(c, apperr.Validation("Unreadable request body"))
			return
		}
		var body any
		if json.Unmarshal(raw, &body) == nil {
			if out, err := json.Marshal(clean(p, "", body)); err == nil {
				raw = out
			}
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		c.Request.ContentLength = int64(len(raw))
		c.Next()
	}
}

func clean(p *bluemonday.Policy, key string, v any) any {
	switch t := v.(type) {
	case string:
		if _, ok := rawFields[key]; ok {
			return t
		}
		return SanitizeText(p, t)
	case []any:
		for i := range t {
			t[i] = clean(p, key, t[i])
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = clean(p, k, val)
		}
		return t
	}
	return v
}

// SanitizeText 标签剥离后还原实体，避免 "&" 变成 "&amp;"
func SanitizeText(p *bluemonday.Policy, s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	return html.UnescapeString(p.Sanitize(s))
}
