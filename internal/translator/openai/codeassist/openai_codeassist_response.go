package codeassist

import (
	"context"

	geminicodeassist "github.com/cliforge/codeassist-gateway/internal/translator/gemini/codeassist"
	openaigemini "github.com/cliforge/codeassist-gateway/internal/translator/openai/gemini"
)

// ConvertCodeAssistResponseToOpenAI unwraps a Cloud Code Assist backend
// streaming chunk into its plain Gemini payload, then converts it to an
// OpenAI Chat Completions-compatible SSE event.
func ConvertCodeAssistResponseToOpenAI(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	var out []string
	for _, geminiChunk := range geminicodeassist.ConvertCodeAssistResponseToGemini(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, nil) {
		out = append(out, openaigemini.ConvertGeminiResponseToOpenAI(ctx, modelName, originalRequestRawJSON, requestRawJSON, []byte(geminiChunk), param)...)
	}
	return out
}

// ConvertCodeAssistResponseToOpenAINonStream unwraps a non-streaming Cloud
// Code Assist response and converts it to an OpenAI-compatible JSON response.
func ConvertCodeAssistResponseToOpenAINonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	geminiShaped := geminicodeassist.ConvertCodeAssistResponseToGeminiNonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, nil)
	return openaigemini.ConvertGeminiResponseToOpenAINonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, []byte(geminiShaped), param)
}
