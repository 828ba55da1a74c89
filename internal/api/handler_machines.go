package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/mw"
	"cmms-backend/internal/workbook"
)

type positionedRow struct {
	Position int          `json:"position"`
	Row      workbook.Row `json:"row"`
}

// GetMachines lists the machines of one type with their positions.
func (h *Handler) GetMachines(c *gin.Context) {
	rows, err := h.Machines.List(c.Request.Context(), mw.CurrentUser(c), c.Param("type_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]positionedRow, len(rows))
	for i, r := range rows {
		out[i] = positionedRow{Position: i, Row: r}
	}
	c.JSON(http.StatusOK, gin.H{"type_id": c.Param("type_id"), "rows": out})
}

// GetMachine returns the machine at a position.
func (h *Handler) GetMachine(c *gin.Context) {
	pos, ok := positionParam(c)
	if !ok {
		return
	}
	row, err := h.Machines.Get(c.Request.Context(), mw.CurrentUser(c), c.Param("type_id"), pos)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, positionedRow{Position: pos, Row: row})
}

// PostMachine adds a machine.
func (h *Handler) PostMachine(c *gin.Context) {
	values, ok := bindValues(c)
	if !ok {
		return
	}
	res, err := h.Machines.Add(c.Request.Context(), mw.CurrentUser(c), c.Param("type_id"), values)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// PutMachine patches the machine at a position.
func (h *Handler) PutMachine(c *gin.Context) {
	pos, ok := positionParam(c)
	if !ok {
		return
	}
	values, ok := bindValues(c)
	if !ok {
		return
	}
	res, err := h.Machines.Edit(c.Request.Context(), mw.CurrentUser(c), c.Param("type_id"), pos, values)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteMachine removes the machine at a position.
func (h *Handler) DeleteMachine(c *gin.Context) {
	pos, ok := positionParam(c)
	if !ok {
		return
	}
	res, err := h.Machines.Delete(c.Request.Context(), mw.CurrentUser(c), c.Param("type_id"), pos)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func positionParam(c *gin.Context) (int, bool) {
	pos, err := strconv.Atoi(c.Param("position"))
	if err != nil || pos < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid position"})
		return 0, false
	}
	return pos, true
}

// bindValues reads a JSON object of field values. Numbers and booleans are
// accepted and converted to their text form; null clears a field.
func bindValues(c *gin.Context) (map[string]string, bool) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		badRequest(c)
		return nil, false
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			values[k] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			values[k] = n.String()
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			values[k] = strconv.FormatBool(b)
			continue
		}
		badRequest(c)
		return nil, false
	}
	return values, true
}
