// Package relay implements the Stream Relay (C9): it pumps an upstream SSE
// byte stream through the registered dialect converters, injects periodic
// heartbeats, and writes back the most recent thought signature it observed
// for the request's (session, model) pair.
package relay

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/cliforge/codeassist-gateway/internal/cache"
	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/imagesink"
	"github.com/cliforge/codeassist-gateway/internal/transport"
	"github.com/cliforge/codeassist-gateway/internal/translator/translator"
)

// Config bundles everything one relayed request needs: which dialect the
// caller speaks, the request pair the converters were built from, the
// signature cache to write back to, and heartbeat cadence.
type Config struct {
	Dialect           string
	ModelID           string
	SessionID         string
	OriginalRequest   []byte
	TranslatedRequest []byte
	Heartbeat         time.Duration
	SignatureCache    *cache.SignatureCache

	// ImageSink, when set, uploads each inline image the converters embed as
	// a data: URI and rewrites the chunk to reference the uploaded URL
	// instead, keeping the SSE payload small for image-heavy responses.
	ImageSink imagesink.Sink
}

// Summary reports what a relayed stream observed, for quota/logging use.
type Summary struct {
	EventCount        int
	SawToolCall       bool
	SawImageInline    bool
	SawUsageMetadata  bool
	FinalSignature    string
	PromptTextGuess   string
	CompletionTextLen int

	// EstimatedPromptTokens and EstimatedCompletionTokens are a cl100k_base
	// tiktoken fallback count, populated unconditionally so a caller can
	// fall back to them when SawUsageMetadata is false — image-generation
	// models often omit usage entirely on their final chunk.
	EstimatedPromptTokens     int
	EstimatedCompletionTokens int
}

// Emit writes one fully SSE-framed chunk (including its trailing blank
// line) to the caller's connection.
type Emit func(frame string) error

// Stream pumps stream to completion, translating each upstream event via
// the dialect converter registry and invoking emit for each resulting
// frame. It returns once the upstream stream ends, the context is
// cancelled, or emit returns an error.
func Stream(ctx context.Context, cfg Config, stream *transport.StreamLines, emit Emit) (*Summary, error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := stream.Next()
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker = time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		tickC = ticker.C
	}

	summary := &Summary{}
	var reasoningSig, toolSig, reasoningText string
	var completionText strings.Builder

	// The codeassist-envelope converters key off the raw "alt" string (not a
	// typed key), mirroring how the query-string alt= parameter is threaded
	// through upstream calls.
	altCtx := context.WithValue(ctx, "alt", "") //nolint:staticcheck
	var param any

loop:
	for {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		case err := <-readErr:
			return summary, err
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if ticker != nil {
				ticker.Reset(cfg.Heartbeat)
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, ":") {
				continue
			}
			if !strings.HasPrefix(trimmed, "data:") {
				continue
			}
			payload := strings.TrimSpace(trimmed[len("data:"):])
			if payload == "[DONE]" {
				continue
			}
			observeSignatures(payload, summary, &reasoningSig, &toolSig, &reasoningText, &completionText)
			if gjson.Get(payload, "usageMetadata").Exists() || gjson.Get(payload, "usage").Exists() {
				summary.SawUsageMetadata = true
			}
			summary.EventCount++

			chunks := translator.Response(CodeAssist, cfg.Dialect, altCtx, cfg.ModelID, cfg.OriginalRequest, cfg.TranslatedRequest, []byte(trimmed), &param)
			for _, chunk := range chunks {
				if cfg.ImageSink != nil {
					chunk = externalizeInlineImages(ctx, cfg.ImageSink, chunk)
				}
				if err := emit(frame(cfg.Dialect, chunk)); err != nil {
					return summary, err
				}
			}
		case <-tickC:
			if err := emit(heartbeatFrame(cfg.Dialect)); err != nil {
				return summary, err
			}
		}
	}

	if toolSig != "" {
		summary.FinalSignature = toolSig
	} else {
		summary.FinalSignature = reasoningSig
	}
	summary.PromptTextGuess = promptTextGuess(cfg.OriginalRequest)
	summary.CompletionTextLen = completionText.Len()
	summary.EstimatedPromptTokens = estimateTokenCount(summary.PromptTextGuess)
	summary.EstimatedCompletionTokens = estimateTokenCount(completionText.String())
	writeBackSignature(cfg, summary, reasoningText)
	return summary, nil
}

// promptTextGuess pulls a representative slice of prompt text out of the
// caller's original request, for the token-count fallback below; it does
// not need to be exact, just representative of prompt length.
func promptTextGuess(originalRequest []byte) string {
	if last := gjson.GetBytes(originalRequest, "messages.#.content").Array(); len(last) > 0 {
		return last[len(last)-1].String()
	}
	if contents := gjson.GetBytes(originalRequest, "contents.#.parts.0.text").Array(); len(contents) > 0 {
		return contents[len(contents)-1].String()
	}
	return gjson.GetBytes(originalRequest, "system").String()
}

var dataURIPattern = regexp.MustCompile(`data:([A-Za-z0-9.+/-]+);base64,([A-Za-z0-9+/=]+)`)

// externalizeInlineImages replaces every data: URI a dialect converter
// embedded in chunk with the URL returned by sink.SaveImage, so the caller
// receives a link instead of a multi-megabyte base64 payload.
func externalizeInlineImages(ctx context.Context, sink imagesink.Sink, chunk string) string {
	if !strings.Contains(chunk, "base64,") {
		return chunk
	}
	return dataURIPattern.ReplaceAllStringFunc(chunk, func(match string) string {
		groups := dataURIPattern.FindStringSubmatch(match)
		if len(groups) != 3 {
			return match
		}
		mimeType, data := groups[1], groups[2]
		url, err := sink.SaveImage(ctx, mimeType, data)
		if err != nil {
			log.Warnf("relay: save inline image: %v", err)
			return match
		}
		return url
	})
}

// observeSignatures walks one unwrapped upstream event's parts looking for
// thought/tool-call signatures, mirroring §4.9 steps 2 and 4.
func observeSignatures(payload string, summary *Summary, reasoningSig, toolSig, reasoningText *string, completionText *strings.Builder) {
	parts := gjson.Get(payload, "response.candidates.0.content.parts")
	if !parts.Exists() {
		parts = gjson.Get(payload, "candidates.0.content.parts")
	}
	if !parts.IsArray() {
		return
	}
	parts.ForEach(func(_, part gjson.Result) bool {
		if txt := part.Get("text"); txt.Exists() {
			completionText.WriteString(txt.String())
		}
		switch {
		case part.Get("thought").Bool():
			if sig := part.Get("thoughtSignature").String(); sig != "" {
				*reasoningSig = sig
			}
			if txt := part.Get("text").String(); txt != "" {
				*reasoningText = txt
			}
		case part.Get("functionCall").Exists():
			summary.SawToolCall = true
			if sig := part.Get("thoughtSignature").String(); sig != "" {
				*toolSig = sig
			}
		case part.Get("inlineData").Exists():
			summary.SawImageInline = true
		}
		return true
	})
}

func writeBackSignature(cfg Config, summary *Summary, reasoningText string) {
	if cfg.SignatureCache == nil || summary.FinalSignature == "" {
		return
	}
	isImageModel := strings.Contains(cfg.ModelID, "image")
	if !cfg.SignatureCache.ShouldCache(summary.SawToolCall, isImageModel) {
		return
	}
	text := reasoningText
	if text == "" {
		text = "." // placeholder so the (signature, text) pair is never empty
	}
	cfg.SignatureCache.Store(cfg.SessionID, cfg.ModelID, summary.FinalSignature, text)
}

// frame wraps a converter's returned chunk as a complete SSE event. The
// Claude converters already emit full "event:\ndata:\n\n" text; the others
// return a bare JSON object that still needs SSE framing.
func frame(dialect, chunk string) string {
	if dialect == Claude {
		return chunk
	}
	return fmt.Sprintf("data: %s\n\n", chunk)
}

func heartbeatFrame(dialect string) string {
	switch dialect {
	case Claude:
		return "event: ping\ndata: {\"type\":\"ping\"}\n\n"
	case Gemini:
		return "data: {\"candidates\":[]}\n\n"
	default:
		return ": heartbeat\n\n"
	}
}

// DoneFrame returns the terminal frame for a dialect's stream.
func DoneFrame(dialect string) string {
	switch dialect {
	case Claude:
		return "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
	case Gemini:
		return ""
	default:
		return "data: [DONE]\n\n"
	}
}
