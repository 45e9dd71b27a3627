// Package provider 在 pkg/llm 之上实现意图分类和自由回复两类模型调用，
// 并对模型输出做分级的防御式解析。
package provider

import "fmt"

// Purpose 模型调用目的，分类和回复可使用不同的模型。
type Purpose string

const (
	PurposeClassification Purpose = "classification"
	PurposeResponse       Purpose = "response"
)

// 特殊意图
const (
	IntentUnknown     = "unknown"
	IntentGeneralChat = "general_chat"
)

// ParamDirectAnswer 模型直接给出答案时使用的参数名。
const ParamDirectAnswer = "direct_answer"

// 解析结果说明码
const (
	ExplainParsedOK           = "PARSED_OK"
	ExplainPartialJSON        = "PARTIAL_JSON_FALLBACK"
	ExplainDirectTextFallback = "DIRECT_TEXT_FALLBACK"
	ExplainNoJSON             = "NO_JSON_IN_RESPONSE"
	ExplainJSONParseFail      = "JSON_PARSE_FAIL"
)

// Tier 产生分类结果的解析层级。
type Tier int

const (
	TierNone Tier = iota
	TierDirectJSON
	TierExtractedJSON
	TierPartialJSON
	TierDirectText
)

func (t Tier) String() string {
	switch t {
	case TierDirectJSON:
		return "direct_json"
	case TierExtractedJSON:
		return "extracted_json"
	case TierPartialJSON:
		return "partial_json"
	case TierDirectText:
		return "direct_text"
	case TierNone:
		return "none"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ClassificationResult 一次分类调用的结果，创建后不再修改。
type ClassificationResult struct {
	Intent      string         `json:"intent"`
	Confidence  float64        `json:"confidence"`
	Parameters  map[string]any `json:"parameters"`
	ExplainCode string         `json:"explain_code"`
	RawResponse string         `json:"-"`
	LatencyMs   int64          `json:"latency_ms"`
	Tier        Tier           `json:"-"`
}

// DirectAnswer 返回非空的 direct_answer 参数。
func (r *ClassificationResult) DirectAnswer() (string, bool) {
	if r == nil || r.Parameters == nil {
		return "", false
	}
	s, ok := r.Parameters[ParamDirectAnswer].(string)
	return s, ok && s != ""
}
