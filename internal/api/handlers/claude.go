package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/registry"
)

// ClaudeMessages handles POST /v1/messages.
func (h *Handler) ClaudeMessages(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "error": gin.H{"message": fmt.Sprintf("invalid request: %v", err), "type": "invalid_request_error"}})
		return
	}

	modelName := gjson.GetBytes(rawJSON, "model").String()
	streamField := gjson.GetBytes(rawJSON, "stream")
	if streamField.Exists() && streamField.Bool() {
		h.streamSSE(c, Claude, modelName, rawJSON)
	} else {
		h.nonStream(c, Claude, modelName, rawJSON)
	}
}

// ClaudeCountTokens handles POST /v1/messages/count_tokens.
func (h *Handler) ClaudeCountTokens(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "error": gin.H{"message": fmt.Sprintf("invalid request: %v", err), "type": "invalid_request_error"}})
		return
	}
	modelName := gjson.GetBytes(rawJSON, "model").String()
	resp, err := h.Exec.CountTokens(c.Request.Context(), Claude, modelName, rawJSON)
	if err != nil {
		writeError(c, Claude, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp)
}

// ClaudeModels handles GET /v1/models in Claude's response shape.
func (h *Handler) ClaudeModels(c *gin.Context) {
	models := registry.GetModels()
	data := make([]gin.H, 0, len(models))
	for _, m := range models {
		data = append(data, gin.H{
			"id":           m.ID,
			"type":         "model",
			"display_name": m.ID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "has_more": false})
}
