package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shelf-taught/internal/domain"
	"shelf-taught/internal/service"
	"shelf-taught/internal/transport/http/ez"
	mdw "shelf-taught/internal/transport/http/middleware"
	"shelf-taught/internal/transport/http/response"
)

type SearchHandler struct {
	svc *service.SearchService
}

func NewSearchHandler(svc *service.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type searchQuery struct {
	filterQuery
	Q string `form:"q"`
}

type suggestQuery struct {
	Q     string `form:"q"`
	Limit int    `form:"limit"`
}

type facetQuery struct {
	Q string `form:"q"`
}

func (h *SearchHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api.Group("/search"))

	ez.RegisterAction(e, ez.Action[searchQuery, response.Page[service.ScoredCurriculum]]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *searchQuery) (response.Page[service.ScoredCurriculum], error) {
			f := in.filter(c)
			f.TeachingApproaches = multi(c, "teachingApproach")
			f.Availability = multi(c, "availability")
			res, err := h.svc.Search(c.Request.Context(), service.SearchParams{
				Q:         in.Q,
				Filter:    f,
				SortBy:    in.SortBy,
				SortOrder: in.SortOrder,
				Page:      in.Page,
				Limit:     in.Limit,
			})
			if err != nil {
				return response.Page[service.ScoredCurriculum]{}, err
			}
			mdw.ObserveSearch("search", res.Total)
			p := page(&res.Paged)
			p.Extra = map[string]any{"query": res.Query, "sortBy": res.SortBy}
			return p, nil
		},
	})

	ez.RegisterAction(e, ez.Action[suggestQuery, []service.Suggestion]{
		Method: http.MethodGet,
		Path:   "/suggestions",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *suggestQuery) ([]service.Suggestion, error) {
			out, err := h.svc.Suggest(c.Request.Context(), in.Q, in.Limit)
			if err != nil {
				return nil, err
			}
			mdw.ObserveSearch("suggest", int64(len(out)))
			return out, nil
		},
	})

	ez.RegisterAction(e, ez.Action[facetQuery, *domain.Facets]{
		Method: http.MethodGet,
		Path:   "/filters",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *facetQuery) (*domain.Facets, error) {
			return h.svc.Filters(c.Request.Context(), in.Q)
		},
	})
}
