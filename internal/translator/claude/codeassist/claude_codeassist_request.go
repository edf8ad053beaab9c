// Package codeassist translates between the Claude Messages API dialect and
// the Cloud Code Assist backend envelope, composing the plain Claude<->Gemini
// converters with the Gemini<->CodeAssist envelope wrapper.
package codeassist

import (
	claudegemini "github.com/cliforge/codeassist-gateway/internal/translator/claude/gemini"
	geminicodeassist "github.com/cliforge/codeassist-gateway/internal/translator/gemini/codeassist"
)

// ConvertClaudeRequestToCodeAssist converts a Claude Messages API request
// into a Cloud Code Assist backend request: first to the plain Gemini shape,
// then wrapped in the project/model/request envelope.
func ConvertClaudeRequestToCodeAssist(modelName string, inputRawJSON []byte, stream bool) []byte {
	geminiShaped := claudegemini.ConvertClaudeRequestToGemini(modelName, inputRawJSON, stream)
	return geminicodeassist.ConvertGeminiRequestToCodeAssist(modelName, geminiShaped, stream)
}
