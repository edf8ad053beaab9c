// Package handlers implements the dialect-facing HTTP handlers of the
// Request Pipeline (C10): each one parses an inbound OpenAI/Claude/Gemini
// request, hands it to the executor, and streams or writes back the
// translated response.
package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"

	"github.com/cliforge/codeassist-gateway/internal/executor"
	"github.com/cliforge/codeassist-gateway/internal/relay"
)

// Handler bundles the executor every dialect handler dispatches through.
type Handler struct {
	Exec *executor.Executor
}

// New builds a Handler around the given executor.
func New(exec *executor.Executor) *Handler {
	return &Handler{Exec: exec}
}

// writeError renders err into the dialect's error response shape and
// writes it with the appropriate HTTP status.
func writeError(c *gin.Context, dialect string, err error) {
	status, body := executor.ErrorBody(dialect, err)
	c.Data(status, "application/json; charset=utf-8", body)
}

// nonStream runs one request to completion and writes the translated body.
func (h *Handler) nonStream(c *gin.Context, dialect, modelName string, rawJSON []byte) {
	result, err := h.Exec.Execute(c.Request.Context(), dialect, modelName, rawJSON)
	if err != nil {
		writeError(c, dialect, err)
		return
	}
	c.Data(result.StatusCode, "application/json; charset=utf-8", result.Body)
}

// streamSSE runs one streaming request, committing SSE headers only once the
// first byte is actually ready to go out, so an upstream failure that occurs
// before any event has been relayed still gets a clean JSON error response
// instead of a half-open SSE connection.
func (h *Handler) streamSSE(c *gin.Context, dialect, modelName string, rawJSON []byte) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Data(http.StatusInternalServerError, "application/json; charset=utf-8", []byte(`{"error":{"message":"streaming not supported","type":"server_error"}}`))
		return
	}

	useGzip := acceptsGzip(c.GetHeader("Accept-Encoding"))
	var gw *gzip.Writer
	defer func() {
		if gw != nil {
			putGzipWriter(gw)
		}
	}()

	var once sync.Once
	commit := func() {
		once.Do(func() {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("Access-Control-Allow-Origin", "*")
			if useGzip {
				c.Header("Content-Encoding", "gzip")
				gw = getGzipWriter(c.Writer)
			}
			c.Writer.WriteHeader(http.StatusOK)
		})
	}

	write := func(b []byte) error {
		if gw != nil {
			if _, err := gw.Write(b); err != nil {
				return err
			}
			if err := gw.Flush(); err != nil {
				return err
			}
		} else if _, err := c.Writer.Write(b); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	emit := func(frame string) error {
		commit()
		return write([]byte(frame))
	}

	summary, err := h.Exec.ExecuteStream(c.Request.Context(), dialect, modelName, rawJSON, emit)
	if err != nil && summary == nil {
		// No event ever reached emit; headers were never committed, so a
		// normal JSON error response is still possible.
		writeError(c, dialect, err)
		return
	}
	if err != nil {
		log.Warnf("handlers: stream for %s interrupted mid-response: %v", dialect, err)
		return
	}

	commit()
	if done := relay.DoneFrame(dialect); done != "" {
		_ = write([]byte(done))
	}
}
