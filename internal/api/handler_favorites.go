package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/mw"
)

// GetFavorites lists the caller's favorite machines.
func (h *Handler) GetFavorites(c *gin.Context) {
	list, err := h.Favorites.List(c.Request.Context(), mw.CurrentUser(c).Username)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// PutFavorite marks a machine as a favorite.
func (h *Handler) PutFavorite(c *gin.Context) {
	err := h.Favorites.Add(c.Request.Context(), mw.CurrentUser(c).Username, c.Param("type_id"), c.Param("machine_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteFavorite unmarks a machine.
func (h *Handler) DeleteFavorite(c *gin.Context) {
	err := h.Favorites.Remove(c.Request.Context(), mw.CurrentUser(c).Username, c.Param("type_id"), c.Param("machine_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
