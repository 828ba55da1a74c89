package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/model"
	"cmms-backend/internal/mw"
)

// GetSearch filters machines across every table.
func (h *Handler) GetSearch(c *gin.Context) {
	var criteria model.SearchCriteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		badRequest(c)
		return
	}
	matches, err := h.Machines.Search(c.Request.Context(), mw.CurrentUser(c), criteria)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(matches), "results": matches})
}

// GetSearchHistory returns recent searches, newest first.
func (h *Handler) GetSearchHistory(c *gin.Context) {
	list, err := h.History.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if list == nil {
		list = []model.SearchHistoryEntry{}
	}
	c.JSON(http.StatusOK, list)
}
