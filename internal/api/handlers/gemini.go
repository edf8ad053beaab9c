package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	. "github.com/cliforge/codeassist-gateway/internal/constant"
	"github.com/cliforge/codeassist-gateway/internal/registry"
)

// GeminiGenerate handles the model:method-style POST routes under
// /v1beta/models/*action (e.g. "gemini-2.5-pro:streamGenerateContent").
func (h *Handler) GeminiGenerate(c *gin.Context) {
	action := strings.TrimPrefix(c.Param("action"), "/")
	modelName, method, ok := strings.Cut(action, ":")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": fmt.Sprintf("%s not found", c.Request.URL.Path), "type": "invalid_request_error"}})
		return
	}

	rawJSON, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": fmt.Sprintf("invalid request: %v", err), "type": "invalid_request_error"}})
		return
	}

	switch method {
	case "generateContent":
		h.nonStream(c, Gemini, modelName, rawJSON)
	case "streamGenerateContent":
		h.streamSSE(c, Gemini, modelName, rawJSON)
	case "countTokens":
		h.geminiCountTokens(c, modelName, rawJSON)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": fmt.Sprintf("unsupported method %q", method), "type": "invalid_request_error"}})
	}
}

func (h *Handler) geminiCountTokens(c *gin.Context, modelName string, rawJSON []byte) {
	resp, err := h.Exec.CountTokens(c.Request.Context(), Gemini, modelName, rawJSON)
	if err != nil {
		writeError(c, Gemini, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp)
}

// GeminiModels handles GET /v1beta/models.
func (h *Handler) GeminiModels(c *gin.Context) {
	models := registry.GetModels()
	data := make([]gin.H, 0, len(models))
	for _, m := range models {
		data = append(data, gin.H{
			"name":                       "models/" + m.ID,
			"version":                    "001",
			"displayName":                m.ID,
			"outputTokenLimit":           m.MaxCompletionTokens,
			"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent", "countTokens"},
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": data})
}

// GeminiGetModel handles GET /v1beta/models/{model}.
func (h *Handler) GeminiGetModel(c *gin.Context) {
	action := strings.TrimPrefix(c.Param("action"), "/")
	modelID := strings.TrimPrefix(action, "models/")
	info := registry.LookupModelInfo(modelID)
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "Not Found", "type": "not_found"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":                       "models/" + info.ID,
		"version":                    "001",
		"displayName":                info.ID,
		"outputTokenLimit":           info.MaxCompletionTokens,
		"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent", "countTokens"},
	})
}
