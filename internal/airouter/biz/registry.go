package biz

import (
	"context"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kart-io/ai-router/internal/airouter/prompts"
	"github.com/kart-io/ai-router/internal/airouter/provider"
	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/validator"
)

// Descriptor 描述处理器负责的意图及其所属模块。
type Descriptor struct {
	// Intent 意图名称，全局唯一。
	Intent string `json:"intent"`
	// Module 所属业务模块，模块关闭时意图不会出现在分类提示词中。
	Module string `json:"module"`
	// Description 给模型看的意图说明。
	Description string `json:"description"`
	// Parameters 给模型看的参数说明。
	Parameters string `json:"parameters,omitempty"`
	// ExplainCodes 该意图可用的 explain 码。
	ExplainCodes []string `json:"explain_codes,omitempty"`
	// InputParam 非空时，模型没有给出该参数则用用户原文补齐。
	InputParam string `json:"input_param,omitempty"`
}

// Handler 意图处理器。
type Handler interface {
	Descriptor() Descriptor
	// Execute 处理已分类的请求并返回给用户的文本。
	Execute(ctx context.Context, params Params, userID int64) (string, error)
}

// HandlerFunc 将函数适配为 Handler。
type HandlerFunc struct {
	Desc Descriptor
	Fn   func(ctx context.Context, params Params, userID int64) (string, error)
}

// Descriptor 返回描述。
func (h HandlerFunc) Descriptor() Descriptor { return h.Desc }

// Execute 调用 Fn。
func (h HandlerFunc) Execute(ctx context.Context, params Params, userID int64) (string, error) {
	return h.Fn(ctx, params, userID)
}

// Registry 意图到处理器的映射，构建后只读，可并发访问。
type Registry struct {
	handlers map[string]Handler
	order    []string
	modules  sets.Set[string]
}

// NewRegistry 注册处理器，意图名称非法或重复时返回错误。
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{
		handlers: make(map[string]Handler, len(handlers)),
		order:    make([]string, 0, len(handlers)),
		modules:  sets.New[string](),
	}
	for _, h := range handlers {
		d := h.Descriptor()
		if err := validator.Global().Engine().Var(d.Intent, "required,"+validator.TagIntent); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("invalid intent name %q", d.Intent)
		}
		if d.Intent == provider.IntentGeneralChat || d.Intent == provider.IntentUnknown {
			return nil, errors.ErrInvalidParams.WithMessagef("intent %q is reserved", d.Intent)
		}
		if d.Module == "" {
			return nil, errors.ErrInvalidParams.WithMessagef("intent %q has no module", d.Intent)
		}
		if _, dup := r.handlers[d.Intent]; dup {
			return nil, errors.ErrDuplicateIntent.WithMessagef("duplicate handler for intent %q", d.Intent)
		}
		r.handlers[d.Intent] = h
		r.order = append(r.order, d.Intent)
		r.modules.Insert(d.Module)
	}
	return r, nil
}

// Lookup 按意图查找处理器。
func (r *Registry) Lookup(intent string) (Handler, bool) {
	h, ok := r.handlers[intent]
	return h, ok
}

// Modules 返回注册了处理器的模块集合。
func (r *Registry) Modules() sets.Set[string] {
	return r.modules.Clone()
}

// Intents 按注册顺序返回全部意图。
func (r *Registry) Intents() []string {
	return slices.Clone(r.order)
}

// Descriptors 按注册顺序返回属于 modules 的处理器描述。
func (r *Registry) Descriptors(modules sets.Set[string]) []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, intent := range r.order {
		d := r.handlers[intent].Descriptor()
		if modules.Has(d.Module) {
			out = append(out, d)
		}
	}
	return out
}

// IntentSpecs 将描述转换为分类提示词的输入。
func IntentSpecs(descs []Descriptor) []prompts.IntentSpec {
	specs := make([]prompts.IntentSpec, len(descs))
	for i, d := range descs {
		specs[i] = prompts.IntentSpec{
			Intent:       d.Intent,
			Description:  d.Description,
			Parameters:   d.Parameters,
			ExplainCodes: d.ExplainCodes,
		}
	}
	return specs
}
