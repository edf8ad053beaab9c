package codeassist

import (
	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/interfaces"
	"github.com/cliforge/codeassist-gateway/internal/translator/translator"
)

func init() {
	translator.Register(
		OpenAI,
		CodeAssist,
		ConvertOpenAIRequestToCodeAssist,
		interfaces.TranslateResponse{
			Stream:    ConvertCodeAssistResponseToOpenAI,
			NonStream: ConvertCodeAssistResponseToOpenAINonStream,
		},
	)
}
