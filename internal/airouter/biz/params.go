package biz

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/utils/json"
	"github.com/kart-io/ai-router/pkg/validator"
)

// Params 模型分类结果中的意图参数。
// 值来自模型输出，处理器应通过 Decode 或 Validate 校验后再使用。
type Params map[string]any

// Has 参数存在且不是空值。
func (p Params) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// String 返回参数的字符串形式，数字按最短格式输出。
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Float 返回数值参数，字符串形式的数字也会被解析。
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Decode 将参数绑定到结构体并按 binding 标签校验。
func (p Params) Decode(v any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return errors.ErrInvalidParams.WithCause(err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.ErrInvalidParams.WithMessage("parameters do not match the expected shape").WithCause(err)
	}
	if verrs := validator.Global().ValidateWithLang(v, validator.LangEN); verrs.HasErrors() {
		return errors.ErrInvalidParams.WithMessage(verrs.Error())
	}
	return nil
}

// Validate 按字段规则校验参数，rules 的值是 binding 标签语法，例如 "required,error_code"。
func (p Params) Validate(rules map[string]string) error {
	if len(rules) == 0 {
		return nil
	}
	data := make(map[string]any, len(rules))
	tags := make(map[string]any, len(rules))
	for field, rule := range rules {
		tags[field] = rule
		// 缺失字段按空串校验，required 规则才能生效
		if p.Has(field) {
			data[field] = p.normalized(field)
		} else {
			data[field] = ""
		}
	}

	failed := validator.Global().Engine().ValidateMap(data, tags)
	if len(failed) == 0 {
		return nil
	}
	fields := make([]string, 0, len(failed))
	for field := range failed {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return errors.ErrInvalidParams.WithMessagef("invalid parameters: %s", strings.Join(fields, ", "))
}

// normalized 将字符串参数去除首尾空白，其他类型原样返回。
func (p Params) normalized(key string) any {
	if s, ok := p[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return p[key]
}

// with 返回补充了 key 的副本，key 已存在时原样返回。
func (p Params) with(key string, value any) Params {
	if key == "" || p.Has(key) {
		return p
	}
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = value
	return out
}
