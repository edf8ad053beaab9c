package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminStatus handles GET /admin/status: a JSON snapshot of the credential
// pool and its per-credential quota state. This is the contract the
// `--status` terminal dashboard polls; it is never used by an
// OpenAI/Claude/Gemini-dialect caller.
func (h *Handler) AdminStatus(c *gin.Context) {
	creds := h.Exec.Pool.Credentials()
	out := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		out = append(out, gin.H{
			"id":        cred.ID,
			"email":     cred.Email,
			"enabled":   cred.Enabled,
			"has_quota": cred.HasQuota,
			"quota":     h.Exec.Quota.Snapshot(cred.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"credentials": out})
}
