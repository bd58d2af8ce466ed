package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"thunder-scheduler/backend/internal/service"
	"thunder-scheduler/backend/pkg/response"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSchedule 导出排课方案
// GET /api/v1/schedules/:id/export?format=csv|xlsx
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	format := c.DefaultQuery("format", service.FormatCSV)

	buf, filename, err := h.exportSvc.ExportSchedule(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	contentType := contentTypeCSV
	if strings.HasSuffix(filename, ".xlsx") {
		contentType = contentTypeXLSX
	}

	// 设置下载响应头
	encodedFilename := url.PathEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoSchedule):
		response.NotFound(c, 14101, "排课方案不存在")
	case errors.Is(err, service.ErrUnsupportedFormat):
		response.BadRequest(c, 14301, "不支持的导出格式，仅支持 csv 与 xlsx")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 14302, "生成导出文件失败")
	default:
		response.InternalError(c)
	}
}
