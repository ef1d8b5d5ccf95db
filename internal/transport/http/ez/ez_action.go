package ez

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/transport/http/response"
	"shelf-taught/internal/validate"
	"shelf-taught/pkg/utils"
)

// Hook；tx 在写操作时为事务
type CrudHooks[T any] struct {
	BeforeCreate func(c *gin.Context, tx *gorm.DB, m *T) error
	BeforeUpdate func(c *gin.Context, tx *gorm.DB, m *T) error
	BeforeDelete func(c *gin.Context, tx *gorm.DB, id string) error
	AfterWrite   func(c *gin.Context)                      // 提交后调用（如清缓存）
	ScopeList    func(c *gin.Context, q *gorm.DB) *gorm.DB // 自定义筛选
}

type CrudConfig[T any] struct {
	DB    *gorm.DB
	Group *gin.RouterGroup // 已鉴权分组
	Path  string
	Name  string // 错误信息里的资源名，如 "Subject"
	New   func() *T

	Hooks CrudHooks[T]

	AllowCreate bool
	AllowList   bool
	AllowGet    bool
	AllowUpdate bool
	AllowDelete bool

	IDField string        // 默认 "ID"
	IDGen   func() string // 默认 utils.NewID

	// 列表 ?q= 模糊匹配的列
	SearchColumns []string
	// 列表排序（列名），为空则按 id
	OrderBy []clause.OrderByColumn
}

// 反射 & 工具
func (c *CrudConfig[T]) idFieldCandidates() []string {
	if c.IDField != "" {
		return []string{c.IDField, "ID", "Id"}
	}
	return []string{"ID", "Id"}
}

func getStringFieldPtr(obj any, candidates []string) (*string, bool) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		return nil, false
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		// 未导出字段跳过
		if f.PkgPath != "" {
			continue
		}
		for _, cand := range candidates {
			if f.Name == cand {
				fv := v.Field(i)
				if fv.Kind() == reflect.String && fv.CanSet() {
					return fv.Addr().Interface().(*string), true
				}
			}
		}
	}
	return nil, false
}

func writeStringField(obj any, candidates []string, val string) bool {
	p, ok := getStringFieldPtr(obj, candidates)
	if !ok {
		return false
	}
	*p = val
	return true
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Crud 注册管理端增删改查（无需模型实现任何接口）
func Crud[T any](cfg CrudConfig[T]) {
	// 默认放开所有操作
	if !cfg.AllowCreate && !cfg.AllowGet && !cfg.AllowList && !cfg.AllowUpdate && !cfg.AllowDelete {
		cfg.AllowCreate, cfg.AllowList, cfg.AllowGet, cfg.AllowUpdate, cfg.AllowDelete = true, true, true, true, true
	}
	if cfg.IDGen == nil {
		cfg.IDGen = utils.NewID
	}
	if cfg.Name == "" {
		cfg.Name = "Resource"
	}
	if len(cfg.OrderBy) == 0 {
		cfg.OrderBy = []clause.OrderByColumn{{Column: clause.Column{Name: "id"}}}
	}
	idFieldNames := cfg.idFieldCandidates()
	notFound := func() error { return apperr.NotFound(cfg.Name + " not found") }
	afterWrite := func(c *gin.Context) {
		if cfg.Hooks.AfterWrite != nil {
			cfg.Hooks.AfterWrite(c)
		}
	}
	find := func(c *gin.Context, id string) (*T, error) {
		m := cfg.New()
		err := cfg.DB.WithContext(c.Request.Context()).Where("id = ?", id).First(m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound()
		}
		if err != nil {
			return nil, apperr.DB("find "+strings.ToLower(cfg.Name), err)
		}
		return m, nil
	}

	// Create
	if cfg.AllowCreate {
		cfg.Group.POST(cfg.Path, func(c *gin.Context) {
			m := cfg.New()
			if err := c.ShouldBindJSON(m); err != nil {
				response.Error(c, BindError(err))
				return
			}
			if err := validate.Struct(m); err != nil {
				response.Error(c, err)
				return
			}
			// ID 总是服务端生成
			if !writeStringField(m, idFieldNames, cfg.IDGen()) {
				response.Error(c, apperr.Internal("id field not found", nil))
				return
			}
			err := cfg.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				if cfg.Hooks.BeforeCreate != nil {
					if err := cfg.Hooks.BeforeCreate(c, tx, m); err != nil {
						return err
					}
				}
				return tx.Create(m).Error
			})
			if err != nil {
				response.Error(c, apperr.DB("create "+strings.ToLower(cfg.Name), err))
				return
			}
			afterWrite(c)
			c.JSON(http.StatusCreated, response.Message(cfg.Name+" created", m))
		})
	}

	// List
	if cfg.AllowList {
		cfg.Group.GET(cfg.Path, func(c *gin.Context) {
			page := atoiDefault(c.Query("page"), 1)
			limit := atoiDefault(c.Query("limit"), 50)
			if limit > 100 {
				limit = 100
			}
			q := cfg.DB.WithContext(c.Request.Context()).Model(cfg.New())
			if s := strings.TrimSpace(c.Query("q")); s != "" && len(cfg.SearchColumns) > 0 {
				like := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
				conds := make([]string, 0, len(cfg.SearchColumns))
				args := make([]any, 0, len(cfg.SearchColumns))
				for _, col := range cfg.SearchColumns {
					conds = append(conds, "LOWER("+col+") LIKE ? ESCAPE '!'")
					args = append(args, like)
				}
				q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
			}
			if cfg.Hooks.ScopeList != nil {
				q = cfg.Hooks.ScopeList(c, q)
			}

			var total int64
			if err := q.Count(&total).Error; err != nil {
				response.Error(c, apperr.DB("count "+strings.ToLower(cfg.Name), err))
				return
			}
			items := []T{}
			if total > 0 {
				q = q.Order(clause.OrderBy{Columns: cfg.OrderBy})
				if err := q.Limit(limit).Offset((page - 1) * limit).Find(&items).Error; err != nil {
					response.Error(c, apperr.DB("list "+strings.ToLower(cfg.Name), err))
					return
				}
			}
			p := response.NewPage(items, page, limit, total)
			env := response.OK(p.Payload())
			env.Pagination = p.PageMeta()
			c.JSON(http.StatusOK, env)
		})
	}

	// Get
	if cfg.AllowGet {
		cfg.Group.GET(cfg.Path+"/:id", func(c *gin.Context) {
			m, err := find(c, c.Param("id"))
			if err != nil {
				response.Error(c, err)
				return
			}
			c.JSON(http.StatusOK, response.OK(m))
		})
	}

	// Update：在现有记录上覆盖请求里出现的字段
	if cfg.AllowUpdate {
		cfg.Group.PUT(cfg.Path+"/:id", func(c *gin.Context) {
			id := c.Param("id")
			m, err := find(c, id)
			if err != nil {
				response.Error(c, err)
				return
			}
			if err := c.ShouldBindJSON(m); err != nil {
				response.Error(c, BindError(err))
				return
			}
			// 强制保持 ID
			_ = writeStringField(m, idFieldNames, id)
			if err := validate.Struct(m); err != nil {
				response.Error(c, err)
				return
			}
			err = cfg.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				if cfg.Hooks.BeforeUpdate != nil {
					if err := cfg.Hooks.BeforeUpdate(c, tx, m); err != nil {
						return err
					}
				}
				return tx.Save(m).Error
			})
			if err != nil {
				response.Error(c, apperr.DB("update "+strings.ToLower(cfg.Name), err))
				return
			}
			afterWrite(c)
			c.JSON(http.StatusOK, response.Message(cfg.Name+" updated", m))
		})
	}

	// Delete
	if cfg.AllowDelete {
		cfg.Group.DELETE(cfg.Path+"/:id", func(c *gin.Context) {
			id := c.Param("id")
			var affected int64
			err := cfg.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				if cfg.Hooks.BeforeDelete != nil {
					if err := cfg.Hooks.BeforeDelete(c, tx, id); err != nil {
						return err
					}
				}
				res := tx.Where("id = ?", id).Delete(cfg.New())
				affected = res.RowsAffected
				return res.Error
			})
			if err != nil {
				response.Error(c, apperr.DB("delete "+strings.ToLower(cfg.Name), err))
				return
			}
			if affected == 0 {
				response.Error(c, notFound())
				return
			}
			afterWrite(c)
			c.JSON(http.StatusOK, response.Message(cfg.Name+" deleted", gin.H{"id": id}))
		})
	}
}
