// Package register wires every provider-specific thinking applier into the
// thinking package's registry via blank import side effects. It exists
// separately from package thinking to avoid an import cycle (each applier
// package imports thinking to implement thinking.ProviderApplier).
package register

import (
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/claude"
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/codeassist"
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/gemini"
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/openai"
)
