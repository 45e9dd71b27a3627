// Package options contains flags and options for initializing the ai-router server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/ai-router/internal/airouter"
	cliflag "github.com/kart-io/ai-router/pkg/app/cliflag"
	"github.com/kart-io/ai-router/pkg/infra/tracing"
	breakeropts "github.com/kart-io/ai-router/pkg/options/breaker"
	cacheopts "github.com/kart-io/ai-router/pkg/options/cache"
	ctxopts "github.com/kart-io/ai-router/pkg/options/conversation"
	dbopts "github.com/kart-io/ai-router/pkg/options/db"
	httpopts "github.com/kart-io/ai-router/pkg/options/http"
	llmopts "github.com/kart-io/ai-router/pkg/options/llm"
	logopts "github.com/kart-io/ai-router/pkg/options/logger"
	poolopts "github.com/kart-io/ai-router/pkg/options/pool"
	ragopts "github.com/kart-io/ai-router/pkg/options/rag"
	ratelimitopts "github.com/kart-io/ai-router/pkg/options/ratelimit"
	redisopts "github.com/kart-io/ai-router/pkg/options/redis"
	routeropts "github.com/kart-io/ai-router/pkg/options/router"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// LLMOptions contains model provider configuration.
	LLMOptions *llmopts.ProviderOptions `json:"llm" mapstructure:"llm"`

	// DBOptions contains relational database configuration.
	DBOptions *dbopts.Options `json:"db" mapstructure:"db"`

	// RedisOptions is only used when a cache or rate limit backend is redis.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	CacheOptions     *cacheopts.Options     `json:"cache" mapstructure:"cache"`
	RateLimitOptions *ratelimitopts.Options `json:"rate-limit" mapstructure:"rate-limit"`
	BreakerOptions   *breakeropts.Options   `json:"circuit-breaker" mapstructure:"circuit-breaker"`
	ContextOptions   *ctxopts.Options       `json:"context" mapstructure:"context"`
	RouterOptions    *routeropts.Options    `json:"router" mapstructure:"router"`
	RAGOptions       *ragopts.Options       `json:"rag" mapstructure:"rag"`
	PoolOptions      *poolopts.Options      `json:"pool" mapstructure:"pool"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracing.Options `json:"tracing" mapstructure:"tracing"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		LLMOptions:       llmopts.NewProviderOptions(),
		DBOptions:        dbopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		RateLimitOptions: ratelimitopts.NewOptions(),
		BreakerOptions:   breakeropts.NewOptions(),
		ContextOptions:   ctxopts.NewOptions(),
		RouterOptions:    routeropts.NewOptions(),
		RAGOptions:       ragopts.NewOptions(),
		PoolOptions:      poolopts.NewOptions(),
		TracingOptions:   tracing.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.LLMOptions.AddFlags(fss.FlagSet("llm"))
	o.DBOptions.AddFlags(fss.FlagSet("db"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.RateLimitOptions.AddFlags(fss.FlagSet("rate-limit"))
	o.BreakerOptions.AddFlags(fss.FlagSet("circuit-breaker"))
	o.ContextOptions.AddFlags(fss.FlagSet("context"))
	o.RouterOptions.AddFlags(fss.FlagSet("router"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.LLMOptions.Complete(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := o.DBOptions.Complete(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.LLMOptions.Validate()...)
	errs = append(errs, o.DBOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.RateLimitOptions.Validate()...)
	errs = append(errs, o.BreakerOptions.Validate()...)
	errs = append(errs, o.ContextOptions.Validate()...)
	errs = append(errs, o.RouterOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	if o.usesRedis() {
		errs = append(errs, o.RedisOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

func (o *ServerOptions) usesRedis() bool {
	return o.CacheOptions.UsesRedis() || o.RateLimitOptions.UsesRedis()
}

// Config builds an airouter.Config based on ServerOptions.
func (o *ServerOptions) Config() (*airouter.Config, error) {
	cfg := &airouter.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		LLMOptions:       o.LLMOptions,
		DBOptions:        o.DBOptions,
		CacheOptions:     o.CacheOptions,
		RateLimitOptions: o.RateLimitOptions,
		BreakerOptions:   o.BreakerOptions,
		ContextOptions:   o.ContextOptions,
		RouterOptions:    o.RouterOptions,
		RAGOptions:       o.RAGOptions,
		PoolOptions:      o.PoolOptions,
		TracingOptions:   o.TracingOptions,
	}
	if o.usesRedis() {
		cfg.RedisOptions = o.RedisOptions
	}
	return cfg, nil
}
