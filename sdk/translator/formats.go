package translator

// Common format identifiers exposed for SDK users.
const (
	FormatOpenAI     Format = "openai"
	FormatClaude     Format = "claude"
	FormatGemini     Format = "gemini"
	FormatCodeAssist Format = "codeassist"
)
