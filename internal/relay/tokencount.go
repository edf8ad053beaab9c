package relay

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func tokenCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})
	return codec
}

// estimateTokenCount is a cl100k_base tiktoken fallback for the cases where
// the upstream dropped usage accounting entirely, e.g. image-generation
// models whose final chunk carries no usageMetadata (§4.9).
func estimateTokenCount(text string) int {
	c := tokenCodec()
	if c == nil || text == "" {
		return 0
	}
	n, err := c.Count(text)
	if err != nil {
		return 0
	}
	return n
}
