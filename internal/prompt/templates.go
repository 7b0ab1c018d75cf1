package prompt

import (
	"regexp"
	"strings"
)

// Conversation modes recognized by ForMode. Anything else falls back to
// the standard template.
const (
	ModeStandard     = "standard"
	ModeProfessional = "professional"
)

// StandardSystemPrompt 日常陪伴模式的系统提示词。
const StandardSystemPrompt = `你是"青蕉"，一位温暖、耐心的心理陪伴伙伴。
你的目标是倾听用户的情绪，用自然、口语化的中文回应，帮助用户缓解焦虑。
回应时请：
1. 先共情，承认用户的感受；
2. 再用简短的语言给出一两个可操作的小建议；
3. 避免说教，避免医学诊断，必要时建议寻求专业帮助。`

// ProfessionalSystemPrompt 专业模式的系统提示词，输出更结构化。
const ProfessionalSystemPrompt = `你是"青蕉"的专业心理咨询助手，熟悉认知行为疗法（CBT）与正念练习。
请以专业但平易近人的中文回应用户：
1. 识别用户描述中的情绪与认知模式；
2. 结合心理学原理给出结构化的分析与练习建议；
3. 不做医学诊断，涉及危机情况时引导用户联系专业机构。`

// cardPromptTemplate 生成抗焦虑卡片的提示词。The conversation is
// spliced in by literal replacement, never by a format operation, so
// brace characters inside user content are preserved as-is.
const cardPromptTemplate = `请根据以下对话内容，为用户生成一张"抗焦虑卡片"。
对话内容：
{conversation_content}

请严格输出一个 JSON 对象，不要输出任何其他文字，字段如下：
{"title": "卡片标题", "summary": "对用户近期状态的简短总结", "suggestions": ["建议1", "建议2", "建议3"], "encouragement": "一句鼓励的话"}`

const conversationPlaceholder = "{conversation_content}"

// suggestionMarker matches the in-band quick-reply payload the model
// appends after its answer, e.g. |||SUGGESTIONS=["a", "b"]|||.
var suggestionMarker = regexp.MustCompile(`(?s)\|\|\|SUGGESTIONS?=.*?\|\|\|`)

// ForMode returns the system prompt template for the requested mode.
func ForMode(mode string) string {
	if mode == ModeProfessional {
		return ProfessionalSystemPrompt
	}
	return StandardSystemPrompt
}

// RenderCardPrompt substitutes the conversation transcript into the card
// prompt template.
func RenderCardPrompt(conversation string) string {
	return strings.ReplaceAll(cardPromptTemplate, conversationPlaceholder, conversation)
}

// StripFences removes surrounding markdown code-fence markers from model
// output before it is parsed as JSON.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// CleanSuggestions removes suggestion markers from assistant content so
// they do not leak into summaries.
func CleanSuggestions(s string) string {
	return strings.TrimSpace(suggestionMarker.ReplaceAllString(s, ""))
}
