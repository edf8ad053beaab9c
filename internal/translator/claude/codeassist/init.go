package codeassist

import (
	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/interfaces"
	"github.com/cliforge/codeassist-gateway/internal/translator/translator"
)

func init() {
	translator.Register(
		Claude,
		CodeAssist,
		ConvertClaudeRequestToCodeAssist,
		interfaces.TranslateResponse{
			Stream:     ConvertCodeAssistResponseToClaude,
			NonStream:  ConvertCodeAssistResponseToClaudeNonStream,
			TokenCount: ClaudeTokenCount,
		},
	)
}
