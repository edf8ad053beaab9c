// Package interfaces defines common function types used throughout the
// gateway for request and response translation, mirroring the SDK
// translator package's own types.
package interfaces

import sdktranslator "github.com/cliforge/codeassist-gateway/sdk/translator"

// Backwards compatible aliases for translator function types.
type TranslateRequestFunc = sdktranslator.RequestTransform

type TranslateResponseFunc = sdktranslator.ResponseStreamTransform

type TranslateResponseNonStreamFunc = sdktranslator.ResponseNonStreamTransform

type TranslateResponse = sdktranslator.ResponseTransform
