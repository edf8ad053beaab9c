package codeassist

import (
	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/interfaces"
	"github.com/cliforge/codeassist-gateway/internal/translator/translator"
)

func init() {
	translator.Register(
		Gemini,
		CodeAssist,
		ConvertGeminiRequestToCodeAssist,
		interfaces.TranslateResponse{
			Stream:     ConvertCodeAssistResponseToGemini,
			NonStream:  ConvertCodeAssistResponseToGeminiNonStream,
			TokenCount: GeminiTokenCount,
		},
	)
}
