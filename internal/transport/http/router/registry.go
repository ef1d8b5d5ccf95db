package router

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// 模块可选择实现其中一个或多个接口
type APIModule interface{ MountAPI(*gin.RouterGroup) }     // 挂在 /api
type AdminModule interface{ MountAdmin(*gin.RouterGroup) } // 挂在 /api/admin（已要求 ADMIN）
type RootModule interface{ MountRoot(*gin.RouterGroup) }   // 挂在根路径（health、sitemap）

// 可选：实现该接口可控制挂载顺序（数值越小越先挂）
// 不实现则默认 100
type prioritizer interface{ Priority() int }

// Registry 模块注册表；API 与管理端 engine 共用同一份
type Registry struct {
	mu    sync.RWMutex
	api   []APIModule
	admin []AdminModule
	root  []RootModule
}

func NewRegistry(mods ...any) *Registry {
	r := &Registry{}
	r.Register(mods...)
	return r
}

// Register 根据类型断言分发到各列表
func (r *Registry) Register(mods ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mod := range mods {
		if m, ok := mod.(APIModule); ok {
			r.api = append(r.api, m)
		}
		if m, ok := mod.(AdminModule); ok {
			r.admin = append(r.admin, m)
		}
		if m, ok := mod.(RootModule); ok {
			r.root = append(r.root, m)
		}
	}
}

func (r *Registry) MountAllAPI(g *gin.RouterGroup) {
	for _, m := range sorted(r, func(r *Registry) []APIModule { return r.api }) {
		m.MountAPI(g)
	}
}

func (r *Registry) MountAllAdmin(g *gin.RouterGroup) {
	for _, m := range sorted(r, func(r *Registry) []AdminModule { return r.admin }) {
		m.MountAdmin(g)
	}
}

func (r *Registry) MountAllRoot(g *gin.RouterGroup) {
	for _, m := range sorted(r, func(r *Registry) []RootModule { return r.root }) {
		m.MountRoot(g)
	}
}

func sorted[M any](r *Registry, pick func(*Registry) []M) []M {
	r.mu.RLock()
	out := append([]M(nil), pick(r)...)
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return priorityOf(out[i]) < priorityOf(out[j])
	})
	return out
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
