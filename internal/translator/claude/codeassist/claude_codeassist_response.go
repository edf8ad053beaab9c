package codeassist

import (
	"context"

	claudegemini "github.com/cliforge/codeassist-gateway/internal/translator/claude/gemini"
	geminicodeassist "github.com/cliforge/codeassist-gateway/internal/translator/gemini/codeassist"
)

// ConvertCodeAssistResponseToClaude unwraps a Cloud Code Assist backend
// streaming chunk into its plain Gemini payload, then converts it to a
// Claude-compatible SSE event using the accumulated stream state in param.
func ConvertCodeAssistResponseToClaude(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	var out []string
	for _, geminiChunk := range geminicodeassist.ConvertCodeAssistResponseToGemini(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, nil) {
		out = append(out, claudegemini.ConvertGeminiResponseToClaude(ctx, modelName, originalRequestRawJSON, requestRawJSON, []byte(geminiChunk), param)...)
	}
	return out
}

// ConvertCodeAssistResponseToClaudeNonStream unwraps a non-streaming Cloud
// Code Assist response and converts it to a Claude-compatible JSON response.
func ConvertCodeAssistResponseToClaudeNonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	geminiShaped := geminicodeassist.ConvertCodeAssistResponseToGeminiNonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, nil)
	return claudegemini.ConvertGeminiResponseToClaudeNonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, []byte(geminiShaped), param)
}

// ClaudeTokenCount formats a backend token count into Claude's expected shape.
func ClaudeTokenCount(ctx context.Context, count int64) string {
	return claudegemini.ClaudeTokenCount(ctx, count)
}
