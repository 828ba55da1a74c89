package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/model"
	"cmms-backend/internal/mw"
)

type machineTypeBody struct {
	ID string `json:"id"`
	model.MachineType
}

// GetMachineTypes lists the machine types.
func (h *Handler) GetMachineTypes(c *gin.Context) {
	types, err := h.Machines.Types(mw.CurrentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]machineTypeBody, 0, len(types))
	for _, mt := range types {
		out = append(out, machineTypeBody{ID: mt.ID, MachineType: mt})
	}
	c.JSON(http.StatusOK, out)
}

// GetMachineType returns one machine type.
func (h *Handler) GetMachineType(c *gin.Context) {
	mt, err := h.Machines.Type(mw.CurrentUser(c), c.Param("type_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, machineTypeBody{ID: mt.ID, MachineType: mt})
}

// PostMachineType registers a machine type.
func (h *Handler) PostMachineType(c *gin.Context) {
	var req machineTypeBody
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		badRequest(c)
		return
	}
	mt, err := h.Machines.AddType(c.Request.Context(), mw.CurrentUser(c), req.ID, req.MachineType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, machineTypeBody{ID: mt.ID, MachineType: mt})
}

// PutMachineType replaces a machine type definition.
func (h *Handler) PutMachineType(c *gin.Context) {
	var req machineTypeBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	mt, err := h.Machines.UpdateType(c.Request.Context(), mw.CurrentUser(c), c.Param("type_id"), req.MachineType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, machineTypeBody{ID: mt.ID, MachineType: mt})
}

// DeleteMachineType removes a machine type with no rows.
func (h *Handler) DeleteMachineType(c *gin.Context) {
	if err := h.Machines.DeleteType(c.Request.Context(), mw.CurrentUser(c), c.Param("type_id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
