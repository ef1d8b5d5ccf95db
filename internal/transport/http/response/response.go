package response

import (
	"math"
	"time"
)

// Envelope 所有接口统一的外层结构
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Stack   string   `json:"stack,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) *Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return &Pagination{
		Page:       page,
		Limit:      limit,
		TotalCount: total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// OK 成功响应（data 为 nil 时省略）
func OK(data any) Envelope {
	return Envelope{Success: true, Data: data, Timestamp: time.Now().UTC()}
}

func Message(msg string, data any) Envelope {
	e := OK(data)
	e.Message = msg
	return e
}

func Fail(code, msg string, details []string) Envelope {
	return Envelope{
		Success:   false,
		Error:     &ErrorBody{Code: code, Message: msg, Details: details},
		Timestamp: time.Now().UTC(),
	}
}

// Page 列表输出；由 ez 拆成 data + pagination
type Page[T any] struct {
	Items []T
	Meta  *Pagination
	Extra map[string]any
}

func NewPage[T any](items []T, page, limit int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: NewPagination(page, limit, total)}
}

// Paginated 被 ez 识别的分页输出
type Paginated interface {
	Payload() any
	PageMeta() *Pagination
}

func (p Page[T]) Payload() any {
	if len(p.Extra) == 0 {
		return p.Items
	}
	out := make(map[string]any, len(p.Extra)+1)
	for k, v := range p.Extra {
		out[k] = v
	}
	out["items"] = p.Items
	return out
}

func (p Page[T]) PageMeta() *Pagination { return p.Meta }
