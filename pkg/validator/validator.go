// Package validator 基于 go-playground/validator 的校验组件，提供中英文错误消息，
// 用于 HTTP 请求体和模型输出的意图参数校验。
package validator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// 支持的语言
const (
	LangEN = "en"
	LangZH = "zh"
)

// 自定义校验标签
const (
	// TagIntent 意图名称：小写字母开头，仅含小写字母、数字和下划线。
	TagIntent = "intent"
	// TagErrorCode 终端错误码，如 E101、ERR-42。
	TagErrorCode = "error_code"
)

var (
	intentPattern    = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	errorCodePattern = regexp.MustCompile(`^[A-Za-z]{1,4}-?\d{1,6}$`)
)

// Validator 包装 validator.Validate 并维护各语言的翻译器。
type Validator struct {
	validate *validator.Validate
	uni      *ut.UniversalTranslator

	mu    sync.RWMutex
	trans map[string]ut.Translator
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global 返回全局校验器，首次调用时初始化。
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New 创建校验器，字段名取 json 标签。
func New() *Validator {
	v := &Validator{
		validate: validator.New(),
		trans:    make(map[string]ut.Translator),
	}
	v.validate.SetTagName("binding")
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	v.uni = ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := v.uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := v.uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	_ = v.RegisterValidationWithTranslation(TagIntent, matchString(intentPattern), map[string]string{
		LangEN: "{0} must be a lowercase intent name",
		LangZH: "{0}必须是小写意图名称",
	})
	_ = v.RegisterValidationWithTranslation(TagErrorCode, matchString(errorCodePattern), map[string]string{
		LangEN: "{0} must be an error code such as E101",
		LangZH: "{0}必须是错误码，例如 E101",
	})
	return v
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate 校验结构体，返回原始 validator 错误。
func (v *Validator) Validate(s any) error {
	return v.validate.Struct(s)
}

// ValidateWithLang 校验结构体并按语言翻译错误，通过时返回 nil。
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewValidationError("unknown", "unknown", err.Error())
	}
	return v.translate(verrs, v.Translator(lang))
}

// Translator 返回指定语言的翻译器，未知语言回退英文。
func (v *Validator) Translator(lang string) ut.Translator {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if t, ok := v.trans[lang]; ok {
		return t
	}
	return v.trans[LangEN]
}

// RegisterValidationWithTranslation 注册自定义规则及其各语言消息，消息中 {0} 为字段名。
func (v *Validator) RegisterValidationWithTranslation(tag string, fn validator.Func, translations map[string]string) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return err
	}
	for lang, message := range translations {
		trans := v.Translator(lang)
		_ = v.validate.RegisterTranslation(tag, trans,
			func(t ut.Translator) error {
				return t.Add(tag, message, true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			},
		)
	}
	return nil
}

// Engine 返回底层 validator.Validate。
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func (v *Validator) translate(errs validator.ValidationErrors, trans ut.Translator) *ValidationErrors {
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// GinValidator 实现 gin binding.StructValidator，使请求体绑定使用同一套规则。
type GinValidator struct {
	V *Validator
}

// ValidateStruct 只校验结构体及其指针，其他类型直接通过。
func (g GinValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if verrs := g.V.ValidateWithLang(obj, LangEN); verrs.HasErrors() {
		return verrs
	}
	return nil
}

// Engine 返回底层引擎。
func (g GinValidator) Engine() any {
	return g.V.Engine()
}
