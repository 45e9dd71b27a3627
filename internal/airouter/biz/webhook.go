package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/ai-router/pkg/id"
	infralog "github.com/kart-io/ai-router/pkg/infra/logger"
	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/utils/httpclient"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookConfig 将一个意图绑定到下游 HTTP 服务。
type WebhookConfig struct {
	Intent       string            `json:"intent" mapstructure:"intent"`
	Module       string            `json:"module" mapstructure:"module"`
	Description  string            `json:"description" mapstructure:"description"`
	Parameters   string            `json:"parameters" mapstructure:"parameters"`
	ExplainCodes []string          `json:"explain-codes" mapstructure:"explain-codes"`
	InputParam   string            `json:"input-param" mapstructure:"input-param"`
	URL          string            `json:"url" mapstructure:"url"`
	Headers      map[string]string `json:"headers" mapstructure:"headers"`
	// Rules 参数校验规则，键为参数名，值为 binding 标签语法。
	Rules   map[string]string `json:"rules" mapstructure:"rules"`
	Timeout time.Duration     `json:"timeout" mapstructure:"timeout"`
}

// WebhookRequest 发送给下游的请求体。
type WebhookRequest struct {
	Intent     string `json:"intent"`
	Parameters Params `json:"parameters"`
	UserID     int64  `json:"user_id"`
	RequestID  string `json:"request_id,omitempty"`
}

// WebhookResponse 下游的响应体，Text 为回复给用户的文本。
type WebhookResponse struct {
	Text string `json:"text"`
}

// WebhookHandler 将意图转发给下游 HTTP 服务。
type WebhookHandler struct {
	desc    Descriptor
	url     string
	headers map[string]string
	rules   map[string]string
	client  *httpclient.Client
}

var _ Handler = (*WebhookHandler)(nil)

// NewWebhookHandler 创建 webhook 处理器，client 为空时按配置超时新建。
func NewWebhookHandler(cfg WebhookConfig, client *httpclient.Client) (*WebhookHandler, error) {
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, errors.ErrConfigInvalid.WithMessagef("webhook for intent %q needs an http(s) url", cfg.Intent)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultWebhookTimeout
		}
		client = httpclient.NewClient(timeout)
	}
	return &WebhookHandler{
		desc: Descriptor{
			Intent:       cfg.Intent,
			Module:       cfg.Module,
			Description:  cfg.Description,
			Parameters:   cfg.Parameters,
			ExplainCodes: cfg.ExplainCodes,
			InputParam:   cfg.InputParam,
		},
		url:     cfg.URL,
		headers: cfg.Headers,
		rules:   cfg.Rules,
		client:  client,
	}, nil
}

// Descriptor 返回描述。
func (h *WebhookHandler) Descriptor() Descriptor {
	return h.desc
}

// Execute 校验参数后调用下游。
func (h *WebhookHandler) Execute(ctx context.Context, params Params, userID int64) (string, error) {
	if err := params.Validate(h.rules); err != nil {
		return "", err
	}

	var resp WebhookResponse
	err := h.client.PostJSON(ctx, h.url, h.headers, WebhookRequest{
		Intent:     h.desc.Intent,
		Parameters: params,
		UserID:     userID,
		RequestID:  id.RequestIDFrom(ctx),
	}, &resp)
	if err != nil {
		infralog.FromContext(ctx).Warnw("webhook call failed", "intent", h.desc.Intent, "url", h.url, "error", err.Error())
		return "", errors.ErrHandlerFailure.WithCause(err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.ErrHandlerFailure.WithMessage("webhook returned empty text")
	}
	return resp.Text, nil
}
