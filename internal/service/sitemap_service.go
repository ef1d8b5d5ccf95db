package service

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/domain"
)

// 静态页面及其更新频率与权重
var staticPages = []struct {
	path     string
	freq     string
	priority string
}{
	{"/", "daily", "1.0"},
	{"/curricula", "daily", "0.9"},
	{"/search", "weekly", "0.8"},
	{"/categories", "weekly", "0.7"},
	{"/about", "monthly", "0.5"},
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type SitemapService struct {
	curricula domain.CurriculumRepository
	baseURL   string
	cache     *cache.Cache
	ttl       time.Duration
	now       func() time.Time
}

func NewSitemapService(curricula domain.CurriculumRepository, frontendURL string, c *cache.Cache, ttl time.Duration) *SitemapService {
	return &SitemapService{
		curricula: curricula,
		baseURL:   strings.TrimRight(frontendURL, "/"),
		cache:     c,
		ttl:       ttlOr(ttl, time.Hour),
		now:       time.Now,
	}
}

func (s *SitemapService) Sitemap(ctx context.Context) ([]byte, error) {
	return s.cache.GetOrLoad(ctx, cacheSitemap+"xml", s.ttl, s.build)
}

func (s *SitemapService) build(ctx context.Context) ([]byte, error) {
	entries, err := s.curricula.SitemapEntries(ctx)
	if err != nil {
		return nil, err
	}
	today := s.now().UTC().Format("2006-01-02")
	set := urlset{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(staticPages)+len(entries)),
	}
	for _, p := range staticPages {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.baseURL + p.path, LastMod: today, ChangeFreq: p.freq, Priority: p.priority})
	}
	for _, e := range entries {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.baseURL + "/curriculum/" + e.Slug,
			LastMod:    e.UpdatedAt.UTC().Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func (s *SitemapService) Robots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /admin\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("\nSitemap: " + s.baseURL + "/sitemap.xml\n")
	return b.String()
}
