package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-service/internal/auth"
	"github.com/psds-microservice/support-service/internal/desk"
	"github.com/psds-microservice/support-service/internal/export"
)

type AdminHandler struct {
	desk *desk.Desk
}

func NewAdminHandler(d *desk.Desk) *AdminHandler {
	return &AdminHandler{desk: d}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, err := h.desk.ListUsers(c.Request.Context(), auth.CallerID(c), c.Query("role"), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) RoleCounts(c *gin.Context) {
	counts, err := h.desk.RoleCounts(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	u, err := h.desk.SetRole(c.Request.Context(), auth.CallerID(c), c.Param("id"), req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) Deactivate(c *gin.Context) {
	u, err := h.desk.Deactivate(c.Request.Context(), auth.CallerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) Reactivate(c *gin.Context) {
	u, err := h.desk.Reactivate(c.Request.Context(), auth.CallerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

var csvTables = map[string]func(io.Writer, *export.Dump) error{
	"users":    export.WriteUsersCSV,
	"tickets":  export.WriteTicketsCSV,
	"messages": export.WriteMessagesCSV,
	"stats":    export.WriteStatsCSV,
}

// Export returns the JSON backup, or with format=csv one table selected by table=.
func (h *AdminHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	var writeCSV func(io.Writer, *export.Dump) error
	switch format {
	case "json":
	case "csv":
		table := c.DefaultQuery("table", "tickets")
		var ok bool
		if writeCSV, ok = csvTables[table]; !ok {
			badRequest(c, "unknown table "+table)
			return
		}
	default:
		badRequest(c, "format must be json or csv")
		return
	}

	dump, err := h.desk.ExportAll(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	contentType := "application/json"
	if writeCSV != nil {
		contentType = "text/csv; charset=utf-8"
		err = writeCSV(&buf, dump)
	} else {
		err = export.WriteJSON(&buf, dump)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
