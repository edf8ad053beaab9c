// Package executor implements the Request Pipeline (C10): it drives one
// inbound call from its already-authenticated, dialect-tagged raw JSON body
// through credential selection, request translation, upstream dispatch, and
// retry/failover, handing streaming responses off to the Stream Relay.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/cliforge/codeassist-gateway/internal/cache"
	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/cooldown"
	"github.com/cliforge/codeassist-gateway/internal/imagesink"
	"github.com/cliforge/codeassist-gateway/internal/pool"
	"github.com/cliforge/codeassist-gateway/internal/quota"
	"github.com/cliforge/codeassist-gateway/internal/registry"
	"github.com/cliforge/codeassist-gateway/internal/relay"
	"github.com/cliforge/codeassist-gateway/internal/thinking"
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/claude"
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/codeassist"
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/gemini"
	_ "github.com/cliforge/codeassist-gateway/internal/thinking/provider/openai"
	"github.com/cliforge/codeassist-gateway/internal/transport"
	"github.com/cliforge/codeassist-gateway/internal/translator/translator"
)

// Upstream CodeAssist backend hosts and paths, mirroring the Antigravity
// client's own request construction.
const (
	prodBaseURL    = "https://cloudcode-pa.googleapis.com"
	sandboxBaseURL = "https://daily-cloudcode-pa.sandbox.googleapis.com"

	pathGenerate       = "/v1internal:generateContent"
	pathStreamGenerate = "/v1internal:streamGenerateContent"
	pathCountTokens    = "/v1internal:countTokens"
)

// retryBackoff bounds how long a retried attempt waits before re-entering
// the pool, separate from the cooldown window the failed credential itself
// receives.
const retryBackoff = 200 * time.Millisecond

// rateLimitCooldown and capacityCooldown are how long a credential is
// excluded from selection for the model that rejected it.
const (
	rateLimitCooldown = 30 * time.Second
	capacityCooldown  = 2 * time.Minute
)

// Executor bundles every component one relayed request touches.
type Executor struct {
	Pool           *pool.Pool
	Quota          *quota.Ledger
	Cooldown       *cooldown.Ledger
	SignatureCache *cache.SignatureCache
	Transport      *transport.Client
	ImageSink      imagesink.Sink

	MaxRetries      int
	HeartbeatMillis int
	UpstreamHost    string // "" (prod) or "sandbox"

	// FakeNonStream runs every non-streaming call through ExecuteStream
	// internally and folds the relayed chunks back into one JSON body,
	// for upstream accounts that throttle or reject true non-streaming
	// requests more aggressively than streaming ones.
	FakeNonStream bool
}

// Result is the outcome of a non-streaming call.
type Result struct {
	Body       []byte
	StatusCode int
}

func (e *Executor) baseURL() string {
	if e.UpstreamHost == "sandbox" {
		return sandboxBaseURL
	}
	return prodBaseURL
}

func (e *Executor) retries() int {
	if e.MaxRetries <= 0 {
		return 3
	}
	return e.MaxRetries
}

// buildEnvelope translates an inbound dialect request to the codeassist
// envelope and stamps it with the selected credential's project ID, which
// the converters themselves leave blank.
func buildEnvelope(dialect, modelID string, rawJSON []byte, stream bool, projectID string) []byte {
	translated := translator.Request(dialect, CodeAssist, modelID, rawJSON, stream)
	if applied, err := thinking.ApplyThinking(translated, modelID, dialect, "codeassist", "codeassist"); err == nil {
		translated = applied
	} else {
		log.Warnf("executor: thinking config for model %s: %v", modelID, err)
	}
	if projectID == "" {
		return translated
	}
	out, err := sjson.SetBytes(translated, "project", projectID)
	if err != nil {
		return translated
	}
	return out
}

// Execute performs a single non-streaming call, retrying across credentials
// per the retry policy in §4.10 of the gateway's request-pipeline contract.
func (e *Executor) Execute(ctx context.Context, dialect, modelID string, rawJSON []byte) (*Result, error) {
	if e.FakeNonStream {
		return e.executeFakeNonStream(ctx, dialect, modelID, rawJSON)
	}
	var lastErr error
	for attempt := 0; attempt <= e.retries(); attempt++ {
		sel, err := e.Pool.Select(ctx, modelID)
		if err != nil {
			return nil, err
		}
		cred := sel.Credential

		envelope := buildEnvelope(dialect, modelID, rawJSON, false, cred.ProjectID)
		headers := e.headersFor(cred.AccessSecret, cred.SessionID)
		target := e.baseURL() + pathGenerate

		body, callErr := e.Transport.CallUnary(ctx, target, headers, envelope)
		if callErr == nil {
			e.Quota.RecordRequest(cred.ID, registry.ModelGroup(modelID))
			converted := translator.ResponseNonStream(CodeAssist, dialect, ctx, modelID, rawJSON, envelope, body, new(any))
			return &Result{Body: []byte(converted), StatusCode: 200}, nil
		}

		lastErr = callErr
		if !e.retryable(callErr, cred.ID, modelID) {
			return nil, callErr
		}
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// executeFakeNonStream backs Execute when FakeNonStream is set: it drives
// the same retry/failover path as ExecuteStream but accumulates the
// relayed chunks instead of writing them to a caller, then renders one
// non-streaming body from the accumulated result.
func (e *Executor) executeFakeNonStream(ctx context.Context, dialect, modelID string, rawJSON []byte) (*Result, error) {
	acc := newFakeStreamAccumulator(dialect)
	if _, err := e.ExecuteStream(ctx, dialect, modelID, rawJSON, acc.emit); err != nil {
		return nil, err
	}
	return &Result{Body: acc.finalize(), StatusCode: 200}, nil
}

// ExecuteStream performs a streaming call, handing the opened SSE body to
// the Stream Relay. Failures before any bytes have been written to emit are
// retried identically to Execute; once relay.Stream starts emitting, a
// mid-stream upstream failure is surfaced to the caller rather than retried,
// since a partial response cannot be safely replayed from another credential.
func (e *Executor) ExecuteStream(ctx context.Context, dialect, modelID string, rawJSON []byte, emit relay.Emit) (*relay.Summary, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retries(); attempt++ {
		sel, err := e.Pool.Select(ctx, modelID)
		if err != nil {
			return nil, err
		}
		cred := sel.Credential

		envelope := buildEnvelope(dialect, modelID, rawJSON, true, cred.ProjectID)
		headers := e.headersFor(cred.AccessSecret, cred.SessionID)
		target := e.baseURL() + pathStreamGenerate + "?alt=sse"

		stream, callErr := e.Transport.CallStream(ctx, target, headers, envelope)
		if callErr != nil {
			lastErr = callErr
			if !e.retryable(callErr, cred.ID, modelID) {
				return nil, callErr
			}
			select {
			case <-time.After(retryBackoff):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		e.Quota.RecordRequest(cred.ID, registry.ModelGroup(modelID))
		summary, streamErr := relay.Stream(ctx, relay.Config{
			Dialect:           dialect,
			ModelID:           modelID,
			SessionID:         cred.SessionID,
			OriginalRequest:   rawJSON,
			TranslatedRequest: envelope,
			Heartbeat:         e.heartbeat(),
			SignatureCache:    e.SignatureCache,
			ImageSink:         e.ImageSink,
		}, stream, emit)
		_ = stream.Close()
		if summary != nil && !summary.SawUsageMetadata {
			log.Debugf("executor: upstream omitted usage for model %s, estimated prompt=%d completion=%d tokens",
				modelID, summary.EstimatedPromptTokens, summary.EstimatedCompletionTokens)
		}
		return summary, streamErr
	}
	return nil, lastErr
}

func (e *Executor) heartbeat() time.Duration {
	if e.HeartbeatMillis <= 0 {
		return 0
	}
	return time.Duration(e.HeartbeatMillis) * time.Millisecond
}

func (e *Executor) headersFor(accessToken, sessionID string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + accessToken,
		"X-Session-Id":  sessionID,
		"User-Agent":    "codeassist-gateway",
	}
}

// retryable applies the §4.8/§4.10 retry policy: rate-limit and
// capacity-exhausted responses cooldown-or-mark the credential and retry;
// no-permission permanently disables it; everything else is terminal.
func (e *Executor) retryable(err error, credID, modelID string) bool {
	upstreamErr, ok := err.(*transport.UpstreamError)
	if !ok {
		return false
	}
	switch upstreamErr.Kind {
	case transport.KindRetryableRateLimit:
		e.Cooldown.Mark(credID, modelID, rateLimitCooldown)
		return true
	case transport.KindCapacityExhausted:
		e.Pool.MarkQuotaExhausted(context.Background(), credID)
		e.Cooldown.Mark(credID, modelID, capacityCooldown)
		return true
	case transport.KindNoPermission:
		e.Pool.DisableCredential(context.Background(), credID)
		log.Warnf("executor: disabled credential %s: upstream reported no permission", credID)
		return false
	default:
		return false
	}
}

// CountTokens performs the upstream countTokens call and translates the
// response back into the caller's dialect.
func (e *Executor) CountTokens(ctx context.Context, dialect, modelID string, rawJSON []byte) ([]byte, error) {
	sel, err := e.Pool.Select(ctx, modelID)
	if err != nil {
		return nil, err
	}
	cred := sel.Credential
	envelope := buildEnvelope(dialect, modelID, rawJSON, false, cred.ProjectID)
	headers := e.headersFor(cred.AccessSecret, cred.SessionID)
	body, err := e.Transport.CallUnary(ctx, e.baseURL()+pathCountTokens, headers, envelope)
	if err != nil {
		return nil, err
	}
	converted := translator.ResponseNonStream(CodeAssist, dialect, ctx, modelID, rawJSON, envelope, body, new(any))
	return []byte(converted), nil
}

// ErrorBody renders err (expected to be a *transport.UpstreamError, but any
// error is handled) into the dialect's error response shape.
func ErrorBody(dialect string, err error) (int, []byte) {
	upstreamErr, ok := err.(*transport.UpstreamError)
	if !ok {
		return 502, genericErrorBody(dialect, err.Error())
	}
	status := upstreamErr.StatusCode
	if status == 0 {
		status = 502
	}
	return status, dialectErrorBody(dialect, upstreamErr)
}

func genericErrorBody(dialect, message string) []byte {
	return dialectErrorBody(dialect, &transport.UpstreamError{StatusCode: 502, BodyText: message, Kind: transport.KindOther})
}

func dialectErrorBody(dialect string, upstreamErr *transport.UpstreamError) []byte {
	errType := errorType(upstreamErr.Kind)
	message := upstreamErr.BodyText
	switch dialect {
	case Claude:
		return []byte(fmt.Sprintf(`{"type":"error","error":{"type":%q,"message":%q}}`, errType, jsonEscape(message)))
	default:
		return []byte(fmt.Sprintf(`{"error":{"message":%q,"type":%q,"code":%q}}`, jsonEscape(message), errType, string(upstreamErr.Kind)))
	}
}

func errorType(kind transport.ErrorKind) string {
	switch kind {
	case transport.KindRetryableRateLimit:
		return "rate_limit_error"
	case transport.KindAuthNeeded:
		return "authentication_error"
	case transport.KindNoPermission, transport.KindCapacityExhausted:
		return "permission_error"
	case transport.KindContextTooLong:
		return "invalid_request_error"
	default:
		return "api_error"
	}
}

// jsonEscape strips characters that would break the hand-built JSON
// templates above; error bodies are short, human-facing strings so a
// full JSON encoder is unneeded here.
func jsonEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
