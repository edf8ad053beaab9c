// Package translator registers every supported dialect conversion by importing
// each converter package for its side-effecting init(). Importing this package
// anonymously wires the full inbound-dialect <-> canonical-upstream matrix into
// the shared sdk/translator registry.
package translator

import (
	_ "github.com/cliforge/codeassist-gateway/internal/translator/claude/codeassist"
	_ "github.com/cliforge/codeassist-gateway/internal/translator/claude/gemini"

	_ "github.com/cliforge/codeassist-gateway/internal/translator/gemini/codeassist"
	_ "github.com/cliforge/codeassist-gateway/internal/translator/gemini/gemini"

	_ "github.com/cliforge/codeassist-gateway/internal/translator/openai/codeassist"
	_ "github.com/cliforge/codeassist-gateway/internal/translator/openai/gemini"
)
