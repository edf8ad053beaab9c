package codeassist

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertCodeAssistResponseToGemini unwraps a Cloud Code Assist backend SSE
// chunk, shaped as {"response":{...}} (optionally "data:"-prefixed), back
// into the plain Gemini response it wraps.
func ConvertCodeAssistResponseToGemini(ctx context.Context, _ string, _, _, rawJSON []byte, _ *any) []string {
	if bytes.HasPrefix(rawJSON, []byte("data:")) {
		rawJSON = bytes.TrimSpace(rawJSON[5:])
	}

	if alt, ok := ctx.Value("alt").(string); ok {
		var chunk []byte
		if alt == "" {
			if responseResult := gjson.GetBytes(rawJSON, "response"); responseResult.Exists() {
				chunk = []byte(responseResult.Raw)
			}
		} else {
			chunkTemplate := "[]"
			responseResult := gjson.ParseBytes(chunk)
			if responseResult.IsArray() {
				for _, item := range responseResult.Array() {
					if item.Get("response").Exists() {
						chunkTemplate, _ = sjson.SetRaw(chunkTemplate, "-1", item.Get("response").Raw)
					}
				}
			}
			chunk = []byte(chunkTemplate)
		}
		return []string{string(chunk)}
	}
	return []string{}
}

// ConvertCodeAssistResponseToGeminiNonStream unwraps a non-streaming Cloud
// Code Assist response envelope back into the plain Gemini response.
func ConvertCodeAssistResponseToGeminiNonStream(_ context.Context, _ string, _, _, rawJSON []byte, _ *any) string {
	if responseResult := gjson.GetBytes(rawJSON, "response"); responseResult.Exists() {
		return responseResult.Raw
	}
	return string(rawJSON)
}

// GeminiTokenCount formats a backend token count into the Gemini countTokens
// response shape.
func GeminiTokenCount(_ context.Context, count int64) string {
	return fmt.Sprintf(`{"totalTokens":%d,"promptTokensDetails":[{"modality":"TEXT","tokenCount":%d}]}`, count, count)
}
