package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/porast/jigman/internal/jig/entity"
	"github.com/porast/jigman/internal/jig/i18n"
)

// ErrArchivingDisabled means no object-store endpoint is configured.
var ErrArchivingDisabled = errors.New("export archiving is not configured")

// ExportService renders the inventory as JSON, spreadsheet or PDF and can
// archive the result to an object-store bucket.
type ExportService struct {
	tr     *i18n.Translator
	mc     *minio.Client
	bucket string
	logger *zap.Logger
	clock  func() time.Time
}

// NewExportService creates the export service. mc may be nil; archiving
// then reports ErrArchivingDisabled.
func NewExportService(tr *i18n.Translator, mc *minio.Client, bucket string, logger *zap.Logger) *ExportService {
	return &ExportService{tr: tr, mc: mc, bucket: bucket, logger: logger, clock: time.Now}
}

// JSON serializes the record sequence verbatim.
func (s *ExportService) JSON(jigs []entity.Jig) ([]byte, error) {
	data, err := json.MarshalIndent(jigs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}
	return data, nil
}

var excelRawHeaders = []string{"Date of Receive", "Received From", "Responsible Person", "Notes"}

// Excel renders the 9-column spreadsheet: five translated columns followed
// by the raw date, origin, responsible person and notes.
func (s *ExportService) Excel(jigs []entity.Jig, lang i18n.Language) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "JIG Inventory"
	f.SetSheetName("Sheet1", sheet)

	headers := append(s.tableHeaders(lang), excelRawHeaders...)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, jig := range jigs {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), jig.Code)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), jig.Customer)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), jig.ProductModelType)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), jig.StorageLocation)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), s.tr.StatusLabel(lang, jig.Status))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), jig.DateOfReceive.Format(time.RFC3339))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), jig.ReceivedFrom)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), jig.ResponsiblePerson)
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), jig.Notes)
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, 22)
	}

	return f, nil
}

// PDF renders the landscape tabular report: title, generation date and the
// five translated columns. Core PDF fonts cannot encode Slovak/German
// combining marks, so every cell is diacritics-stripped.
func (s *ExportService) PDF(jigs []entity.Jig, lang i18n.Language) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "JIG Inventory Report")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, "Generated: "+s.clock().Format("2006-01-02"))
	pdf.Ln(10)

	colWidths := []float64{45, 45, 70, 60, 50}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(59, 130, 246)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range s.tableHeaders(lang) {
		pdf.CellFormat(colWidths[i], 8, i18n.StripDiacritics(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, jig := range jigs {
		cells := []string{
			jig.Code,
			jig.Customer,
			jig.ProductModelType,
			jig.StorageLocation,
			s.tr.StatusLabel(lang, jig.Status),
		}
		for i, cell := range cells {
			pdf.CellFormat(colWidths[i], 7, i18n.StripDiacritics(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ExportService) tableHeaders(lang i18n.Language) []string {
	return []string{
		s.tr.Translate(lang, "inventory.table.jigNo"),
		s.tr.Translate(lang, "inventory.table.customer"),
		s.tr.Translate(lang, "inventory.table.modelType"),
		s.tr.Translate(lang, "inventory.table.location"),
		s.tr.Translate(lang, "inventory.table.status"),
	}
}

// FileName builds the dated download name, e.g. jig-inventory-2025-01-31.pdf.
func (s *ExportService) FileName(ext string) string {
	return fmt.Sprintf("jig-inventory-%s.%s", s.clock().Format("2006-01-02"), ext)
}

// Archive uploads an export to the configured bucket under exports/ and
// returns the object name.
func (s *ExportService) Archive(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if s.mc == nil {
		return "", ErrArchivingDisabled
	}

	objectName := "exports/" + name
	_, err := s.mc.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", objectName, err)
	}

	s.logger.Info("Export archived",
		zap.String("bucket", s.bucket), zap.String("object", objectName))
	return objectName, nil
}
