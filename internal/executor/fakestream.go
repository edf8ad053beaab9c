package executor

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	. "github.com/cliforge/codeassist-gateway/internal/constant"
)

// fakeStreamAccumulator folds a dialect's relayed SSE chunks back into the
// single JSON body a non-streaming caller expects, backing the
// fake-non-stream configuration option.
type fakeStreamAccumulator struct {
	dialect string
	text    strings.Builder
	final   string // document under construction, built incrementally via sjson

	haveHeader   bool
	toolCallSeen map[int64]bool
	geminiFunc   string // raw functionCall part, Gemini dialect only
}

func newFakeStreamAccumulator(dialect string) *fakeStreamAccumulator {
	return &fakeStreamAccumulator{dialect: dialect, toolCallSeen: map[int64]bool{}}
}

// emit satisfies relay.Emit; it never itself fails, since a malformed or
// unexpected chunk should just be skipped rather than abort the stream.
func (a *fakeStreamAccumulator) emit(frame string) error {
	payload := ssePayload(frame)
	if payload == "" || payload == "[DONE]" {
		return nil
	}
	switch a.dialect {
	case OpenAI:
		a.absorbOpenAI(payload)
	case Claude:
		a.absorbClaude(sseEvent(frame), payload)
	default:
		a.absorbGemini(payload)
	}
	return nil
}

func (a *fakeStreamAccumulator) finalize() []byte {
	switch a.dialect {
	case OpenAI:
		return a.finalizeOpenAI()
	case Claude:
		return a.finalizeClaude()
	default:
		return a.finalizeGemini()
	}
}

func (a *fakeStreamAccumulator) absorbOpenAI(payload string) {
	root := gjson.Parse(payload)
	if !a.haveHeader {
		a.final = "{}"
		a.final, _ = sjson.Set(a.final, "object", "chat.completion")
		a.final, _ = sjson.Set(a.final, "id", root.Get("id").String())
		a.final, _ = sjson.Set(a.final, "created", root.Get("created").Int())
		a.final, _ = sjson.Set(a.final, "model", root.Get("model").String())
		a.final, _ = sjson.Set(a.final, "choices.0.index", 0)
		a.final, _ = sjson.Set(a.final, "choices.0.message.role", "assistant")
		a.haveHeader = true
	}

	delta := root.Get("choices.0.delta")
	if content := delta.Get("content"); content.Exists() {
		a.text.WriteString(content.String())
	}
	delta.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		idx := tc.Get("index").Int()
		base := fmt.Sprintf("choices.0.message.tool_calls.%d", idx)
		if !a.toolCallSeen[idx] {
			a.toolCallSeen[idx] = true
			a.final, _ = sjson.Set(a.final, base+".index", idx)
			a.final, _ = sjson.Set(a.final, base+".type", "function")
		}
		if id := tc.Get("id"); id.Exists() {
			a.final, _ = sjson.Set(a.final, base+".id", id.String())
		}
		if name := tc.Get("function.name"); name.Exists() {
			a.final, _ = sjson.Set(a.final, base+".function.name", name.String())
		}
		if args := tc.Get("function.arguments"); args.Exists() {
			existing := gjson.Get(a.final, base+".function.arguments").String()
			a.final, _ = sjson.Set(a.final, base+".function.arguments", existing+args.String())
		}
		return true
	})
	if fr := root.Get("choices.0.finish_reason"); fr.Exists() && fr.Type != gjson.Null {
		a.final, _ = sjson.Set(a.final, "choices.0.finish_reason", fr.String())
	}
	if usage := root.Get("usage"); usage.Exists() {
		a.final, _ = sjson.SetRaw(a.final, "usage", usage.Raw)
	}
}

func (a *fakeStreamAccumulator) finalizeOpenAI() []byte {
	if a.final == "" {
		a.final = "{}"
	}
	if a.text.Len() > 0 || len(a.toolCallSeen) == 0 {
		a.final, _ = sjson.Set(a.final, "choices.0.message.content", a.text.String())
	} else {
		a.final, _ = sjson.SetRaw(a.final, "choices.0.message.content", "null")
	}
	return []byte(a.final)
}

func (a *fakeStreamAccumulator) absorbClaude(event, payload string) {
	root := gjson.Parse(payload)
	switch event {
	case "message_start":
		if !a.haveHeader {
			a.final = root.Get("message").Raw
			a.final, _ = sjson.SetRaw(a.final, "content", "[]")
			a.haveHeader = true
		}
	case "content_block_start":
		idx := root.Get("index").String()
		a.final, _ = sjson.SetRaw(a.final, "content."+idx, root.Get("content_block").Raw)
	case "content_block_delta":
		idx := root.Get("index").String()
		delta := root.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			existing := gjson.Get(a.final, "content."+idx+".text").String()
			a.final, _ = sjson.Set(a.final, "content."+idx+".text", existing+delta.Get("text").String())
		case "input_json_delta":
			existing := gjson.Get(a.final, "content."+idx+".input_json_raw").String()
			a.final, _ = sjson.Set(a.final, "content."+idx+".input_json_raw", existing+delta.Get("partial_json").String())
		case "thinking_delta":
			existing := gjson.Get(a.final, "content."+idx+".thinking").String()
			a.final, _ = sjson.Set(a.final, "content."+idx+".thinking", existing+delta.Get("thinking").String())
		case "signature_delta":
			a.final, _ = sjson.Set(a.final, "content."+idx+".signature", delta.Get("signature").String())
		}
	case "message_delta":
		if sr := root.Get("delta.stop_reason"); sr.Exists() && sr.Type != gjson.Null {
			a.final, _ = sjson.Set(a.final, "stop_reason", sr.String())
		}
		if ss := root.Get("delta.stop_sequence"); ss.Exists() && ss.Type != gjson.Null {
			a.final, _ = sjson.Set(a.final, "stop_sequence", ss.String())
		}
		if usage := root.Get("usage"); usage.Exists() {
			a.final, _ = sjson.SetRaw(a.final, "usage", usage.Raw)
		}
	}
}

func (a *fakeStreamAccumulator) finalizeClaude() []byte {
	if a.final == "" {
		return []byte(`{"type":"message","role":"assistant","content":[]}`)
	}
	a.final, _ = sjson.Set(a.final, "type", "message")
	gjson.Get(a.final, "content").ForEach(func(key, block gjson.Result) bool {
		if block.Get("type").String() != "tool_use" {
			return true
		}
		path := "content." + key.String()
		raw := block.Get("input_json_raw").String()
		if raw == "" {
			raw = "{}"
		}
		a.final, _ = sjson.SetRaw(a.final, path+".input", raw)
		a.final, _ = sjson.Delete(a.final, path+".input_json_raw")
		return true
	})
	return []byte(a.final)
}

func (a *fakeStreamAccumulator) absorbGemini(payload string) {
	root := gjson.Parse(payload)
	cand := root.Get("candidates.0")
	if !cand.Exists() {
		return
	}
	if a.final == "" {
		a.final = "{}"
	}
	cand.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if txt := part.Get("text"); txt.Exists() {
			a.text.WriteString(txt.String())
		} else if part.Get("functionCall").Exists() {
			a.geminiFunc = part.Raw
		}
		return true
	})
	if fr := cand.Get("finishReason"); fr.Exists() {
		a.final, _ = sjson.Set(a.final, "candidates.0.finishReason", fr.String())
	}
	if um := root.Get("usageMetadata"); um.Exists() {
		a.final, _ = sjson.SetRaw(a.final, "usageMetadata", um.Raw)
	}
	a.final, _ = sjson.Set(a.final, "candidates.0.content.role", "model")
	a.final, _ = sjson.Set(a.final, "candidates.0.index", 0)
}

func (a *fakeStreamAccumulator) finalizeGemini() []byte {
	if a.final == "" {
		a.final = "{}"
	}
	a.final, _ = sjson.Set(a.final, "candidates.0.content.parts.0.text", a.text.String())
	if a.geminiFunc != "" {
		a.final, _ = sjson.SetRaw(a.final, "candidates.0.content.parts.1", a.geminiFunc)
	}
	return []byte(a.final)
}

func ssePayload(frame string) string {
	payload := ""
	for _, line := range strings.Split(frame, "\n") {
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			payload = strings.TrimSpace(rest)
		}
	}
	return payload
}

func sseEvent(frame string) string {
	for _, line := range strings.Split(frame, "\n") {
		if rest, ok := strings.CutPrefix(line, "event:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
