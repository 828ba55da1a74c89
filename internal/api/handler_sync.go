package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/mw"
)

// GetSync reports the workbook synchronization state.
func (h *Handler) GetSync(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sync.Status())
}

// PostSyncFetch forces a fetch of the remote workbook. Privileged only.
func (h *Handler) PostSyncFetch(c *gin.Context) {
	if !mw.CurrentUser(c).Privileged() {
		forbidden(c)
		return
	}
	if err := h.Sync.Fetch(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Sync.Status())
}
