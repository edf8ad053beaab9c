package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/registry"
)

// OpenAIChatCompletions handles POST /v1/chat/completions.
func (h *Handler) OpenAIChatCompletions(c *gin.Context) {
	rawJSON, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": fmt.Sprintf("invalid request: %v", err), "type": "invalid_request_error"}})
		return
	}

	modelName := gjson.GetBytes(rawJSON, "model").String()
	stream := gjson.GetBytes(rawJSON, "stream").Bool()
	if stream {
		h.streamSSE(c, OpenAI, modelName, rawJSON)
	} else {
		h.nonStream(c, OpenAI, modelName, rawJSON)
	}
}

// OpenAIModels handles GET /v1/models.
func (h *Handler) OpenAIModels(c *gin.Context) {
	models := registry.GetModels()
	data := make([]gin.H, 0, len(models))
	for _, m := range models {
		data = append(data, gin.H{
			"id":       m.ID,
			"object":   "model",
			"owned_by": m.OwnedBy,
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}
