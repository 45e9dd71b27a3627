// Package prompts 构建 AI 路由使用的系统提示词。
//
// 分类提示词只列出当前启用且已注册处理器的模块，模型不会被引导到不可达的意图。
package prompts

import (
	"fmt"
	"strings"
)

// 通用 explain 码，所有分类提示词都会附带。
const (
	ExplainGeneralTopic    = "GENERAL_TOPIC"
	ExplainAmbiguous       = "AMBIGUOUS"
	ExplainNoMatch         = "NO_MATCH"
	ExplainContextFollowUp = "CONTEXT_FOLLOW_UP"
)

// IntentSpec 描述一个可路由意图，用于生成分类提示词。
type IntentSpec struct {
	// Intent 意图名称，模型需原样返回。
	Intent string
	// Description 意图说明，可包含示例。
	Description string
	// Parameters 参数说明，通常是 JSON 形式的字段描述。
	Parameters string
	// ExplainCodes 该意图可用的 explain 码。
	ExplainCodes []string
}

// Classification 根据可路由意图构建分类提示词。
func Classification(intents []IntentSpec) string {
	var b strings.Builder

	b.WriteString("You are the intent classifier of a technical support assistant.\n\n")
	b.WriteString("Your task: determine the user's intent and extract parameters from the message.\n\n")

	b.WriteString("AVAILABLE MODULES (route only to these):\n")
	b.WriteString(modulesSection(intents))
	b.WriteString("\n\n")

	b.WriteString(`RULES:
1. If the text CLEARLY matches one of the available modules, return its intent with high confidence (0.7-1.0).
2. If the text RESEMBLES a module but you are not sure, return that intent with confidence 0.4-0.7.
3. If the text matches no module but is a reasonable question, return intent "general_chat" with confidence 0.5-0.8.
4. If the text is meaningless or unclear, return intent "unknown" with confidence below 0.3.
5. NEVER route to a module that is not listed under AVAILABLE MODULES.
6. Use the previous messages, when present, to resolve follow-up questions.
7. For a short general question you can answer directly, you may put the full answer into parameters.direct_answer with intent "general_chat".
8. Do not copy very long user text into parameters; pass only the informative fragment.

`)

	b.WriteString("RESPONSE FORMAT (strict JSON, no extra text):\n")
	b.WriteString("{\n")
	fmt.Fprintf(&b, "    \"intent\": \"string, one of: %s\",\n", intentList(intents))
	b.WriteString("    \"confidence\": 0.0-1.0,\n")
	b.WriteString("    \"parameters\": {...},\n")
	b.WriteString("    \"explain_code\": \"string, short routing reason code\"\n")
	b.WriteString("}\n\n")

	b.WriteString("EXPLAIN CODES:\n")
	b.WriteString(explainSection(intents))
	b.WriteString("\n")
	fmt.Fprintf(&b, "- %s: general question not related to any module\n", ExplainGeneralTopic)
	fmt.Fprintf(&b, "- %s: ambiguous intent\n", ExplainAmbiguous)
	fmt.Fprintf(&b, "- %s: the text matches no module\n", ExplainNoMatch)
	fmt.Fprintf(&b, "- %s: continuation of the previous dialogue", ExplainContextFollowUp)

	return b.String()
}

// Chat 返回自由对话的系统提示词。
func Chat() string {
	return `You are a friendly assistant of a technical support service for field engineers.

Answer briefly and to the point, in the language of the question.
If you do not know the answer, say so honestly.
Do not use Markdown formatting in the answer.
Do not invent facts; answer only from general knowledge.
If the question concerns specific internal processes, suggest the corresponding section of the service menu.`
}

// RAG 构建基于知识库片段回答问题的系统提示词。
func RAG(contextBlocks []string) string {
	var b strings.Builder
	b.WriteString(`You are an assistant that answers questions using an internal knowledge base.

Use ONLY the fragments below. If they do not contain the answer, say that the knowledge base has no information on the question.
Answer briefly, in the language of the question, without Markdown formatting.
When helpful, mention the document the answer comes from.

KNOWLEDGE BASE FRAGMENTS:
`)
	if len(contextBlocks) == 0 {
		b.WriteString("(no fragments)")
		return b.String()
	}
	b.WriteString(strings.Join(contextBlocks, "\n\n"))
	return b.String()
}

func modulesSection(intents []IntentSpec) string {
	if len(intents) == 0 {
		return "  (no modules available for routing)"
	}
	lines := make([]string, 0, len(intents))
	for _, it := range intents {
		params := it.Parameters
		if params == "" {
			params = "{}"
		}
		lines = append(lines, fmt.Sprintf("- Intent: %s\n  Description: %s\n  Parameters: %s",
			it.Intent, it.Description, params))
	}
	return strings.Join(lines, "\n")
}

func intentList(intents []IntentSpec) string {
	names := make([]string, 0, len(intents)+2)
	for _, it := range intents {
		names = append(names, it.Intent)
	}
	names = append(names, "general_chat", "unknown")
	return strings.Join(names, ", ")
}

func explainSection(intents []IntentSpec) string {
	lines := make([]string, 0, len(intents))
	for _, it := range intents {
		if len(it.ExplainCodes) == 0 {
			continue
		}
		lines = append(lines, "- "+strings.Join(it.ExplainCodes, ", "))
	}
	if len(lines) == 0 {
		return "  (no modules)"
	}
	return strings.Join(lines, "\n")
}
