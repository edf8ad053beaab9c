// Package codeassist wraps and unwraps the Cloud Code Assist backend envelope
// around plain Gemini v1beta request and response payloads. The backend
// expects requests shaped as {"project":"","model":"","request":{...}} and
// returns responses shaped as {"response":{...}} per emitted chunk.
package codeassist

import (
	"fmt"

	gemininorm "github.com/cliforge/codeassist-gateway/internal/translator/gemini/gemini"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertGeminiRequestToCodeAssist normalizes a plain Gemini request and
// wraps it in the project/model/request envelope the Cloud Code Assist
// backend expects. The model name is promoted out of the request body and
// into the envelope's top-level model field, and scattered function-response
// parts are regrouped to match the backend's expected turn structure.
func ConvertGeminiRequestToCodeAssist(modelName string, inputRawJSON []byte, stream bool) []byte {
	normalized := gemininorm.ConvertGeminiRequestToGemini(modelName, inputRawJSON, stream)

	template := `{"project":"","request":{},"model":""}`
	template, _ = sjson.SetRaw(template, "request", string(normalized))
	template, _ = sjson.Set(template, "model", gjson.Get(template, "request.model").String())
	template, _ = sjson.Delete(template, "request.model")

	fixed, err := fixCodeAssistToolResponse(template)
	if err != nil {
		return []byte(template)
	}
	return []byte(fixed)
}

// functionCallGroup tracks how many function responses a model turn with
// function calls still needs before it can be emitted as a grouped turn.
type functionCallGroup struct {
	responsesNeeded int
}

// fixCodeAssistToolResponse regroups linear functionResponse parts (one per
// content entry) into a single role:"function" content entry per originating
// model turn, matching the grouped shape the backend requires.
func fixCodeAssistToolResponse(input string) (string, error) {
	parsed := gjson.Parse(input)

	contents := parsed.Get("request.contents")
	if !contents.Exists() {
		return input, fmt.Errorf("contents not found in input")
	}

	contentsWrapper := `{"contents":[]}`
	var pendingGroups []*functionCallGroup
	var collectedResponses []gjson.Result

	contents.ForEach(func(_, value gjson.Result) bool {
		role := value.Get("role").String()
		parts := value.Get("parts")

		var responsePartsInThisContent []gjson.Result
		parts.ForEach(func(_, part gjson.Result) bool {
			if part.Get("functionResponse").Exists() {
				responsePartsInThisContent = append(responsePartsInThisContent, part)
			}
			return true
		})

		if len(responsePartsInThisContent) > 0 {
			collectedResponses = append(collectedResponses, responsePartsInThisContent...)

			for i := len(pendingGroups) - 1; i >= 0; i-- {
				group := pendingGroups[i]
				if len(collectedResponses) >= group.responsesNeeded {
					groupResponses := collectedResponses[:group.responsesNeeded]
					collectedResponses = collectedResponses[group.responsesNeeded:]

					functionResponseContent := `{"parts":[],"role":"function"}`
					for _, response := range groupResponses {
						if !response.IsObject() {
							log.Warnf("failed to parse function response")
							continue
						}
						functionResponseContent, _ = sjson.SetRaw(functionResponseContent, "parts.-1", response.Raw)
					}

					if gjson.Get(functionResponseContent, "parts.#").Int() > 0 {
						contentsWrapper, _ = sjson.SetRaw(contentsWrapper, "contents.-1", functionResponseContent)
					}

					pendingGroups = append(pendingGroups[:i], pendingGroups[i+1:]...)
					break
				}
			}

			return true
		}

		if role == "model" {
			functionCallsCount := 0
			parts.ForEach(func(_, part gjson.Result) bool {
				if part.Get("functionCall").Exists() {
					functionCallsCount++
				}
				return true
			})

			if functionCallsCount > 0 {
				if !value.IsObject() {
					log.Warnf("failed to parse model content")
					return true
				}
				contentsWrapper, _ = sjson.SetRaw(contentsWrapper, "contents.-1", value.Raw)
				pendingGroups = append(pendingGroups, &functionCallGroup{responsesNeeded: functionCallsCount})
			} else {
				if !value.IsObject() {
					log.Warnf("failed to parse content")
					return true
				}
				contentsWrapper, _ = sjson.SetRaw(contentsWrapper, "contents.-1", value.Raw)
			}
		} else {
			if !value.IsObject() {
				log.Warnf("failed to parse content")
				return true
			}
			contentsWrapper, _ = sjson.SetRaw(contentsWrapper, "contents.-1", value.Raw)
		}

		return true
	})

	for _, group := range pendingGroups {
		if len(collectedResponses) >= group.responsesNeeded {
			groupResponses := collectedResponses[:group.responsesNeeded]
			collectedResponses = collectedResponses[group.responsesNeeded:]

			functionResponseContent := `{"parts":[],"role":"function"}`
			for _, response := range groupResponses {
				if !response.IsObject() {
					log.Warnf("failed to parse function response")
					continue
				}
				functionResponseContent, _ = sjson.SetRaw(functionResponseContent, "parts.-1", response.Raw)
			}

			if gjson.Get(functionResponseContent, "parts.#").Int() > 0 {
				contentsWrapper, _ = sjson.SetRaw(contentsWrapper, "contents.-1", functionResponseContent)
			}
		}
	}

	result := input
	result, _ = sjson.SetRaw(result, "request.contents", gjson.Get(contentsWrapper, "contents").Raw)
	return result, nil
}
