// Package constant defines provider and dialect identifiers used throughout
// the gateway, ensuring consistent naming across routing, translation, and
// credential-pool selection.
package constant

const (
	// Gemini represents the plain Google Gemini v1beta wire format.
	Gemini = "gemini"

	// CodeAssist represents the Cloud Code Assist backend wire format: a
	// Gemini payload enveloped with project/model/request wrapper fields.
	CodeAssist = "codeassist"

	// Claude represents the Anthropic Messages API dialect.
	Claude = "claude"

	// OpenAI represents the OpenAI Chat Completions dialect.
	OpenAI = "openai"
)
