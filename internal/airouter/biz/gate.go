package biz

import (
	"sync"
	"sync/atomic"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ModuleAIRouter AI 路由自身的模块开关。
const ModuleAIRouter = "ai_router"

// ModuleGate 业务模块开关。
type ModuleGate interface {
	IsModuleEnabled(module string) bool
	EnabledModules() sets.Set[string]
}

// StaticGate 由配置初始化、运行时可切换的模块开关。
type StaticGate struct {
	mu    sync.RWMutex
	flags map[string]*atomic.Bool
}

var _ ModuleGate = (*StaticGate)(nil)

// NewStaticGate 创建开关，enabled 中的模块初始为开启，未出现的模块视为关闭。
func NewStaticGate(enabled ...string) *StaticGate {
	g := &StaticGate{flags: make(map[string]*atomic.Bool, len(enabled))}
	for _, m := range enabled {
		g.SetEnabled(m, true)
	}
	return g
}

// IsModuleEnabled 模块是否开启。
func (g *StaticGate) IsModuleEnabled(module string) bool {
	g.mu.RLock()
	f, ok := g.flags[module]
	g.mu.RUnlock()
	return ok && f.Load()
}

// EnabledModules 返回开启的模块集合。
func (g *StaticGate) EnabledModules() sets.Set[string] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := sets.New[string]()
	for m, f := range g.flags {
		if f.Load() {
			out.Insert(m)
		}
	}
	return out
}

// SetEnabled 切换模块开关。
func (g *StaticGate) SetEnabled(module string, enabled bool) {
	g.mu.RLock()
	f, ok := g.flags[module]
	g.mu.RUnlock()
	if ok {
		f.Store(enabled)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if f, ok = g.flags[module]; !ok {
		f = new(atomic.Bool)
		g.flags[module] = f
	}
	f.Store(enabled)
}
