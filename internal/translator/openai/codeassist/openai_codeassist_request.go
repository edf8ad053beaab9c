// Package codeassist translates between the OpenAI Chat Completions dialect
// and the Cloud Code Assist backend envelope, composing the plain
// OpenAI<->Gemini converters with the Gemini<->CodeAssist envelope wrapper.
package codeassist

import (
	geminicodeassist "github.com/cliforge/codeassist-gateway/internal/translator/gemini/codeassist"
	openaigemini "github.com/cliforge/codeassist-gateway/internal/translator/openai/gemini"
)

// ConvertOpenAIRequestToCodeAssist converts an OpenAI Chat Completions
// request into a Cloud Code Assist backend request: first to the plain
// Gemini shape, then wrapped in the project/model/request envelope.
func ConvertOpenAIRequestToCodeAssist(modelName string, inputRawJSON []byte, stream bool) []byte {
	geminiShaped := openaigemini.ConvertOpenAIRequestToGemini(modelName, inputRawJSON, stream)
	return geminicodeassist.ConvertGeminiRequestToCodeAssist(modelName, geminiShaped, stream)
}
