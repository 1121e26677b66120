package handler

import (
	"bytes"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/porast/jigman/internal/jig/i18n"
	"github.com/porast/jigman/internal/jig/service"
)

const (
	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// ExportHandler serves the export downloads and the archive operation.
// JSON exports the full collection verbatim; spreadsheet and PDF render
// the current filtered view, as the UI does.
type ExportHandler struct {
	inventory *service.InventoryService
	export    *service.ExportService
}

// NewExportHandler creates a new export handler.
func NewExportHandler(inventory *service.InventoryService, export *service.ExportService) *ExportHandler {
	return &ExportHandler{inventory: inventory, export: export}
}

// JSON GET /export/json
func (h *ExportHandler) JSON(c *gin.Context) {
	data, err := h.export.JSON(h.inventory.Jigs())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	h.download(c, h.export.FileName("json"), contentTypeJSON, data)
}

// Excel GET /export/excel?lang=
func (h *ExportHandler) Excel(c *gin.Context) {
	lang := i18n.ParseLanguage(c.Query("lang"))
	f, err := h.export.Excel(h.inventory.FilteredJigs(), lang)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		InternalError(c, err.Error())
		return
	}
	h.download(c, h.export.FileName("xlsx"), contentTypeXLSX, buf.Bytes())
}

// PDF GET /export/pdf?lang=
func (h *ExportHandler) PDF(c *gin.Context) {
	lang := i18n.ParseLanguage(c.Query("lang"))
	data, err := h.export.PDF(h.inventory.FilteredJigs(), lang)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	h.download(c, h.export.FileName("pdf"), contentTypePDF, data)
}

// Archive POST /export/archive (Administrator only)
// Renders the requested format and stores it in the object-store bucket.
func (h *ExportHandler) Archive(c *gin.Context) {
	var input struct {
		Format string        `json:"format" binding:"required"`
		Lang   i18n.Language `json:"lang"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	lang := i18n.ParseLanguage(string(input.Lang))

	var (
		data        []byte
		contentType string
		name        string
		err         error
	)
	switch input.Format {
	case "json":
		data, err = h.export.JSON(h.inventory.Jigs())
		contentType, name = contentTypeJSON, h.export.FileName("json")
	case "excel":
		var buf bytes.Buffer
		f, xerr := h.export.Excel(h.inventory.FilteredJigs(), lang)
		if xerr == nil {
			xerr = f.Write(&buf)
			f.Close()
		}
		data, err = buf.Bytes(), xerr
		contentType, name = contentTypeXLSX, h.export.FileName("xlsx")
	case "pdf":
		data, err = h.export.PDF(h.inventory.FilteredJigs(), lang)
		contentType, name = contentTypePDF, h.export.FileName("pdf")
	default:
		BadRequest(c, "Unknown export format: "+input.Format)
		return
	}
	if err != nil {
		InternalError(c, err.Error())
		return
	}

	object, err := h.export.Archive(c.Request.Context(), name, contentType, data)
	if err != nil {
		if errors.Is(err, service.ErrArchivingDisabled) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, err.Error())
		return
	}

	Success(c, gin.H{"object": object})
}

func (h *ExportHandler) download(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Transfer-Encoding", "binary")
	c.Data(200, contentType, data)
}
