package gemini

import (
	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/interfaces"
	"github.com/cliforge/codeassist-gateway/internal/translator/translator"
)

func init() {
	translator.Register(
		OpenAI,
		Gemini,
		ConvertOpenAIRequestToGemini,
		interfaces.TranslateResponse{
			Stream:    ConvertGeminiResponseToOpenAI,
			NonStream: ConvertGeminiResponseToOpenAINonStream,
		},
	)
}
