package provider

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/pkg/utils/json"
)

const (
	// directTextMinRunes 短于此长度的非 JSON 文本不作为直接回答
	directTextMinRunes = 80
	// directAnswerMaxRunes direct_answer 参数的最大长度
	directAnswerMaxRunes = 4000
	// directTextConfidence 直接文本回退的置信度
	directTextConfidence = 0.85
)

var (
	partialIntentRe     = regexp.MustCompile(`"intent"\s*:\s*"([^"]+)"`)
	partialConfidenceRe = regexp.MustCompile(`"confidence"\s*:\s*([0-9]*\.?[0-9]+)`)
	partialExplainRe    = regexp.MustCompile(`"(?:explain_code|explainCode)"\s*:\s*"([^"]+)"`)
)

// ParseClassification 从模型原始输出中提取分类结果，逐级降级：
//
//  1. 去掉 ``` 代码块包裹后按 JSON 解析；
//  2. 提取第一个括号平衡的 {...} 片段解析；
//  3. 对截断或损坏的 JSON 用正则恢复 intent/confidence，参数置空；
//  4. 足够长的自然语言文本视为直接回答（general_chat）；
//  5. 以上都失败时返回 unknown。
//
// 返回值永远非 nil。
func ParseClassification(raw string) *ClassificationResult {
	if obj, ok := decodeObject(stripFence(strings.TrimSpace(raw))); ok {
		return fromObject(obj, raw, TierDirectJSON)
	}

	if obj, ok := extractObject(raw); ok {
		return fromObject(obj, raw, TierExtractedJSON)
	}

	if r := parsePartial(raw); r != nil {
		logger.Warnw("classification parsed from partial json",
			"intent", r.Intent,
			"confidence", r.Confidence,
		)
		return r
	}

	if r := parseDirectText(raw); r != nil {
		logger.Warnw("classification fell back to direct text answer",
			"length", utf8.RuneCountInString(raw),
		)
		return r
	}

	code := ExplainNoJSON
	if start := strings.Index(raw, "{"); start >= 0 && strings.LastIndex(raw, "}") > start {
		code = ExplainJSONParseFail
	}
	logger.Warnw("no usable classification in model response",
		"explain_code", code,
		"response", truncateRunes(raw, 200),
	)
	return &ClassificationResult{
		Intent:      IntentUnknown,
		Parameters:  map[string]any{},
		ExplainCode: code,
		RawResponse: raw,
		Tier:        TierNone,
	}
}

// stripFence 去掉 ```lang ... ``` 包裹。
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimLeftFunc(body, unicode.IsLetter)
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

func decodeObject(s string) (map[string]any, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// extractObject 依次尝试文本中每个括号平衡的顶层 {...} 片段。
// 括号匹配会跳过字符串字面量内的括号和转义字符。
func extractObject(raw string) (map[string]any, bool) {
	for offset := 0; offset < len(raw); {
		start := strings.IndexByte(raw[offset:], '{')
		if start < 0 {
			return nil, false
		}
		start += offset

		end := matchBrace(raw, start)
		if end < 0 {
			// 未闭合，说明输出被截断
			return nil, false
		}
		if obj, ok := decodeObject(raw[start : end+1]); ok {
			return obj, true
		}
		offset = end + 1
	}
	return nil, false
}

// matchBrace 返回与 raw[start] 处 '{' 匹配的 '}' 下标，找不到返回 -1。
func matchBrace(raw string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func fromObject(obj map[string]any, raw string, tier Tier) *ClassificationResult {
	r := &ClassificationResult{
		Intent:      IntentUnknown,
		Parameters:  map[string]any{},
		ExplainCode: ExplainParsedOK,
		RawResponse: raw,
		Tier:        tier,
	}

	if v, ok := obj["intent"]; ok && v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			r.Intent = s
		}
	}
	r.Confidence = clamp01(toFloat(obj["confidence"]))

	if params, ok := obj["parameters"].(map[string]any); ok {
		r.Parameters = params
	}

	for _, key := range []string{"explain_code", "explainCode"} {
		if v, ok := obj[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				r.ExplainCode = s
				break
			}
		}
	}
	return r
}

func parsePartial(raw string) *ClassificationResult {
	if !strings.Contains(raw, `"intent"`) {
		return nil
	}
	m := partialIntentRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}

	r := &ClassificationResult{
		Intent:      m[1],
		Parameters:  map[string]any{},
		ExplainCode: ExplainPartialJSON,
		RawResponse: raw,
		Tier:        TierPartialJSON,
	}
	if cm := partialConfidenceRe.FindStringSubmatch(raw); cm != nil {
		if f, err := strconv.ParseFloat(cm[1], 64); err == nil {
			r.Confidence = clamp01(f)
		}
	}
	if em := partialExplainRe.FindStringSubmatch(raw); em != nil {
		r.ExplainCode = em[1]
	}
	return r
}

func parseDirectText(raw string) *ClassificationResult {
	candidate := strings.TrimSpace(raw)
	if utf8.RuneCountInString(candidate) < directTextMinRunes {
		return nil
	}
	if strings.HasPrefix(candidate, "{") || strings.HasPrefix(candidate, "```") {
		return nil
	}
	if !strings.Contains(candidate, " ") || strings.IndexFunc(candidate, unicode.IsLetter) < 0 {
		return nil
	}

	return &ClassificationResult{
		Intent:      IntentGeneralChat,
		Confidence:  directTextConfidence,
		Parameters:  map[string]any{ParamDirectAnswer: truncateRunes(candidate, directAnswerMaxRunes)},
		ExplainCode: ExplainDirectTextFallback,
		RawResponse: raw,
		Tier:        TierDirectText,
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f
		}
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
