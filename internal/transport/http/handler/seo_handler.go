package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/response"
)

type SEOHandler struct {
	svc *service.SitemapService
}

func NewSEOHandler(svc *service.SitemapService) *SEOHandler { return &SEOHandler{svc: svc} }

func (h *SEOHandler) MountRoot(r *gin.RouterGroup) {
	r.GET("/sitemap.xml", func(c *gin.Context) {
		b, err := h.svc.Sitemap(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, "application/xml; charset=utf-8", b)
	})
	r.GET("/robots.txt", func(c *gin.Context) {
		c.String(http.StatusOK, h.svc.Robots())
	})
}
